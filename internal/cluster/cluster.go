// Package cluster groups nearby detected regions so that fragmented label
// text on a plat (a coordinate split across two detection boxes, say) is
// recognized as one unit.
package cluster

import (
	"image"
	"math"

	"platmaster/internal/detect"
)

// Params controls density-based grouping of region centers.
type Params struct {
	// Radius is the neighborhood distance in pixels between region centers.
	Radius float64
	// MinSize is the smallest number of regions that form a cluster.
	// Regions in smaller groups are treated as noise and dropped.
	MinSize int
}

// DefaultParams returns grouping parameters tuned for 300 DPI plat scans.
func DefaultParams() Params {
	return Params{Radius: 50, MinSize: 2}
}

// Cluster is a group of regions merged into a single bounding box.
type Cluster struct {
	// Box is the union of the member regions' bounding boxes.
	Box image.Rectangle
	// Regions are the members, in input order.
	Regions []detect.Region
}

// Group runs density-based clustering (DBSCAN) over the centers of the given
// regions. Regions whose neighborhoods never reach MinSize are noise and do
// not appear in any cluster. Fewer than MinSize input regions always yields
// zero clusters.
func Group(regions []detect.Region, params Params) []Cluster {
	if len(regions) < params.MinSize {
		return nil
	}

	const (
		unvisited = 0
		noise     = -1
	)

	centers := make([]image.Point, len(regions))
	for i, r := range regions {
		centers[i] = r.Center()
	}

	// labels[i] holds the 1-based cluster id, or noise/unvisited.
	labels := make([]int, len(regions))
	nextID := 0

	for i := range regions {
		if labels[i] != unvisited {
			continue
		}
		neighbors := neighborsOf(centers, i, params.Radius)
		if len(neighbors) < params.MinSize {
			labels[i] = noise
			continue
		}

		nextID++
		labels[i] = nextID

		// Expand the cluster over the density-reachable frontier.
		for k := 0; k < len(neighbors); k++ {
			j := neighbors[k]
			if labels[j] == noise {
				labels[j] = nextID
				continue
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextID
			more := neighborsOf(centers, j, params.Radius)
			if len(more) >= params.MinSize {
				neighbors = append(neighbors, more...)
			}
		}
	}

	if nextID == 0 {
		return nil
	}

	clusters := make([]Cluster, nextID)
	for i, label := range labels {
		if label <= 0 {
			continue
		}
		c := &clusters[label-1]
		if len(c.Regions) == 0 {
			c.Box = regions[i].Box
		} else {
			c.Box = c.Box.Union(regions[i].Box)
		}
		c.Regions = append(c.Regions, regions[i])
	}
	return clusters
}

// neighborsOf returns the indexes of all centers within radius of center i,
// including i itself.
func neighborsOf(centers []image.Point, i int, radius float64) []int {
	var out []int
	for j, p := range centers {
		if distance(centers[i], p) <= radius {
			out = append(out, j)
		}
	}
	return out
}

func distance(a, b image.Point) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

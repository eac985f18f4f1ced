// Package detect locates and reads text regions on rasterized plat pages.
//
// Two swappable backends implement the same contract: a local Tesseract
// backend (combined detect+recognize, the default) and a Google Cloud Vision
// backend. Both return geometry in page pixel coordinates and pass the
// underlying model's confidence through unmodified, rescaled only to the
// [0,1] range. No spell-correction or domain normalization happens here; the
// recognized text goes downstream exactly as the engine produced it.
package detect

import (
	"context"
	"image"
	"strings"

	"platmaster/internal/raster"
)

// Category is a coarse classification of a detected region.
type Category int

const (
	CategoryText Category = iota
	CategoryTitle
	CategoryList
	CategoryTable
	CategoryFigure
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryText:
		return "text"
	case CategoryTitle:
		return "title"
	case CategoryList:
		return "list"
	case CategoryTable:
		return "table"
	case CategoryFigure:
		return "figure"
	default:
		return "text"
	}
}

// Region is a candidate text region located on a page raster.
type Region struct {
	// Box is the axis-aligned bounding box in page pixel coordinates.
	Box image.Rectangle

	// Poly is the detector-reported polygon, when the backend provides one.
	// It always lies within Box.
	Poly []image.Point

	// Category is the detector's coarse classification of the region.
	Category Category

	// Confidence is the detection confidence in [0,1], as calibrated by the
	// underlying model.
	Confidence float64
}

// Center returns the center point of the region's bounding box.
func (r Region) Center() image.Point {
	return image.Pt(r.Box.Min.X+r.Box.Dx()/2, r.Box.Min.Y+r.Box.Dy()/2)
}

// Block is a recognized text block.
type Block struct {
	// Box is the block geometry in page pixel coordinates. For blocks read
	// from a cluster crop, this is the crop rectangle.
	Box image.Rectangle

	// Text is the recognized text, exactly as returned by the engine.
	Text string

	// Confidence is the recognition confidence in [0,1].
	Confidence float64
}

// Detector locates candidate text regions on a page raster. A blank page may
// legitimately yield zero regions; a backend error is a page-level failure.
type Detector interface {
	DetectRegions(ctx context.Context, page raster.Page) ([]Region, error)
}

// BlockReader recognizes text either across the full page (crops == nil) or
// within the given crop rectangles. Blocks whose trimmed text is empty are
// dropped before returning.
type BlockReader interface {
	ReadBlocks(ctx context.Context, page raster.Page, crops []image.Rectangle) ([]Block, error)
}

// Backend is a combined detect+recognize engine. Instances are constructed
// once at startup and injected into the pipeline; whether concurrent page
// submissions are allowed is up to the implementation.
type Backend interface {
	Detector
	BlockReader

	// Close releases backend resources.
	Close() error
}

// dropBlank filters out blocks whose trimmed text is empty, preserving order.
func dropBlank(blocks []Block) []Block {
	kept := blocks[:0]
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		kept = append(kept, b)
	}
	return kept
}

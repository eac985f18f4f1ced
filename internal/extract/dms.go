package extract

import (
	"regexp"
	"strconv"
	"strings"

	"platmaster/pkg/models"
)

// dmsPattern matches degree-minute-second coordinate strings such as
// `31°30'00"N`, `102° 12' 30.5" W`, or `31d30m00sN`. Minutes and seconds
// are optional.
var dmsPattern = regexp.MustCompile(
	`^\s*(-?\d+(?:\.\d+)?)\s*(?:°|º|[dD])\s*` +
		`(?:(\d+(?:\.\d+)?)\s*(?:'|′|[mM])\s*)?` +
		`(?:(\d+(?:\.\d+)?)\s*(?:"|″|''|[sS])\s*)?` +
		`\s*([NSEWnsew])?\s*$`)

// normalizeCoordinate converts a degree-minute-second coordinate string to
// decimal degrees. Strings already in decimal form (or not recognizable as
// coordinates) are returned unchanged.
func normalizeCoordinate(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return value
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return trimmed
	}

	m := dmsPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return value
	}

	degrees, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return value
	}
	negative := degrees < 0
	if negative {
		degrees = -degrees
	}

	if m[2] != "" {
		minutes, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return value
		}
		degrees += minutes / 60
	}
	if m[3] != "" {
		seconds, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return value
		}
		degrees += seconds / 3600
	}

	// Plat records carry the hemisphere in the label text ("LAT N",
	// "LONG W"), so magnitudes stay positive whether the value arrived
	// in decimal or DMS form. A hemisphere suffix only confirms the
	// label; it never flips the sign.
	if negative {
		degrees = -degrees
	}

	return strconv.FormatFloat(degrees, 'f', -1, 64)
}

// normalizeRecord applies coordinate normalization to every point field of
// a parsed plat record in place.
func normalizeRecord(record *models.Plat) {
	points := []*models.CoordinatePoint{
		&record.SurfaceHoleLocation,
		&record.PenetrationPoint,
		&record.FirstTakePoint,
		&record.LastTakePoint,
		&record.BottomHoleLocation,
	}
	for _, p := range points {
		if p.Lat != nil {
			v := normalizeCoordinate(*p.Lat)
			p.Lat = &v
		}
		if p.Lon != nil {
			v := normalizeCoordinate(*p.Lon)
			p.Lon = &v
		}
	}
}

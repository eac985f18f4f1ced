package models

import "encoding/json"

// CoordinatePoint is a single named well location expressed as decimal-degree
// strings in NAD 83 TX-C. Lat/Lon are nil when the plat does not state them.
type CoordinatePoint struct {
	Lat *string `json:"lat"`
	Lon *string `json:"lon"`
}

// Plat is the structured record extracted from one page of a well-location
// plat document. Elevation is unitless; the five points correspond to the
// labeled sections of a Texas horizontal-well plat.
type Plat struct {
	Elevation           string          `json:"elevation"`
	SurfaceHoleLocation CoordinatePoint `json:"surface_hole_location"`
	PenetrationPoint    CoordinatePoint `json:"penetration_point"`
	FirstTakePoint      CoordinatePoint `json:"first_take_point"`
	LastTakePoint       CoordinatePoint `json:"last_take_point"`
	BottomHoleLocation  CoordinatePoint `json:"bottom_hole_location"`
}

// PageResult is one page's extraction outcome inside a multi-page document.
type PageResult struct {
	Page   int    `json:"page"`
	Record Plat   `json:"record"`
	Failed bool   `json:"failed,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// DocumentResult is the per-document output shape. Exactly one of Record or
// Pages is set: a single-page document yields the bare record, a multi-page
// document yields the numbered page sequence. The asymmetry is a compatibility
// quirk of the output format and is preserved at the JSON boundary.
type DocumentResult struct {
	Record *PageResult
	Pages  []PageResult
}

// SinglePage reports whether the result carries a bare single-page record.
func (r DocumentResult) SinglePage() bool {
	return r.Record != nil
}

// MarshalJSON emits the bare record for single-page documents and
// {"pages": [...]} for multi-page documents.
func (r DocumentResult) MarshalJSON() ([]byte, error) {
	if r.Record != nil {
		return json.Marshal(r.Record.Record)
	}
	return json.Marshal(struct {
		Pages []PageResult `json:"pages"`
	}{Pages: r.Pages})
}

// UnmarshalJSON accepts either output shape.
func (r *DocumentResult) UnmarshalJSON(data []byte) error {
	var multi struct {
		Pages []PageResult `json:"pages"`
	}
	if err := json.Unmarshal(data, &multi); err == nil && multi.Pages != nil {
		r.Pages = multi.Pages
		r.Record = nil
		return nil
	}
	var rec Plat
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	r.Record = &PageResult{Page: 1, Record: rec}
	r.Pages = nil
	return nil
}

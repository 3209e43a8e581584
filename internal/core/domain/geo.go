package domain

import "encoding/json"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Polygon is an ordered, open ring of at least three points (first != last).
type Polygon []GeoPoint

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Intersects reports whether two bounding boxes overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinLat <= o.MaxLat && b.MaxLat >= o.MinLat &&
		b.MinLng <= o.MaxLng && b.MaxLng >= o.MinLng
}

// ReferencePolygon is an approved boundary the overlap detector compares against.
type ReferencePolygon struct {
	CoordinateHistoryID string  `json:"coordinate_history_id"`
	ApplicationID       string  `json:"application_id"`
	ApplicationNo       string  `json:"application_no"`
	Polygon             Polygon `json:"polygon"`
	Bounds              Bounds  `json:"bounds"`
}

// OverlapResult describes one non-empty intersection between a candidate
// boundary and an approved reference boundary. Percentage is relative to
// the candidate polygon, not the reference.
type OverlapResult struct {
	AffectedApplicationID       string          `json:"affected_application_id"`
	AffectedApplicationNo       string          `json:"affected_application_no"`
	AffectedCoordinateHistoryID string          `json:"affected_coordinate_history_id"`
	OverlapPercentage           float64         `json:"overlap_percentage"`
	OverlapAreaSqMeters         float64         `json:"overlap_area_sq_meters"`
	OverlapGeoJSON              json.RawMessage `json:"overlap_geojson,omitempty"`
}

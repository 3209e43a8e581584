package geospatial

import (
	"encoding/json"
	"sort"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// DetectOverlaps compares a candidate boundary against the approved
// reference set and returns one result per non-empty intersection, ordered
// by descending overlap percentage. Percentages are relative to the
// candidate's own area. The function is pure: it never touches the ledger.
func DetectOverlaps(candidate domain.Polygon, refs []domain.ReferencePolygon) []domain.OverlapResult {
	if len(candidate) < 3 {
		return nil
	}

	candBounds := BoundingBox(candidate)
	origin := center(candBounds)
	candPlanar := project(candidate, origin)
	candArea := planarArea(candPlanar)
	if candArea == 0 {
		return nil
	}

	var results []domain.OverlapResult
	for _, ref := range refs {
		// Cheap rejection before any polygon math.
		if !candBounds.Intersects(ref.Bounds) {
			continue
		}

		refPlanar := project(ref.Polygon, origin)
		clipped := clipPolygon(refPlanar, candPlanar)
		if clipped == nil {
			continue
		}
		area := planarArea(clipped)
		if area == 0 {
			continue
		}

		results = append(results, domain.OverlapResult{
			AffectedApplicationID:       ref.ApplicationID,
			AffectedApplicationNo:       ref.ApplicationNo,
			AffectedCoordinateHistoryID: ref.CoordinateHistoryID,
			OverlapPercentage:           area / candArea * 100,
			OverlapAreaSqMeters:         area,
			OverlapGeoJSON:              intersectionGeoJSON(clipped, origin),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].OverlapPercentage > results[j].OverlapPercentage
	})
	return results
}

// intersectionGeoJSON encodes a planar ring as a GeoJSON Polygon geometry.
func intersectionGeoJSON(ring []planar, origin domain.GeoPoint) json.RawMessage {
	coords := make([][2]float64, 0, len(ring)+1)
	for _, pt := range ring {
		gp := unproject(pt, origin)
		coords = append(coords, [2]float64{gp.Lng, gp.Lat})
	}
	coords = append(coords, coords[0]) // GeoJSON rings are closed

	geom := struct {
		Type        string         `json:"type"`
		Coordinates [][][2]float64 `json:"coordinates"`
	}{
		Type:        "Polygon",
		Coordinates: [][][2]float64{coords},
	}
	data, err := json.Marshal(geom)
	if err != nil {
		return nil
	}
	return data
}

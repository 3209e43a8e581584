package domain

import "time"

// CoordinateStatus is the lifecycle state of an approved boundary version.
type CoordinateStatus string

const (
	CoordActive   CoordinateStatus = "ACTIVE"
	CoordReplaced CoordinateStatus = "REPLACED"
	CoordVoided   CoordinateStatus = "VOIDED"
)

// CoordinateHistory is one approved polygon version for an application.
// At most one ACTIVE record exists per application at any time; a later
// approval marks the old record REPLACED and links it to its successor.
type CoordinateHistory struct {
	ID            string           `json:"id"`
	ApplicationID string           `json:"application_id"`
	Coordinates   Polygon          `json:"coordinates"`
	PointCount    int              `json:"point_count"`
	Bounds        Bounds           `json:"bounds"`
	Status        CoordinateStatus `json:"status"`
	ApprovedAt    time.Time        `json:"approved_at"`
	ApprovedBy    string           `json:"approved_by"`
	ReplacedAt    *time.Time       `json:"replaced_at,omitempty"`
	ReplacedBy    string           `json:"replaced_by,omitempty"` // id of the superseding record
}

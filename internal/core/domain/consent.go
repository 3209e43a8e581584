package domain

import "time"

// ConsentStatus tracks a consent document from an affected permit holder.
type ConsentStatus string

const (
	ConsentRequired    ConsentStatus = "REQUIRED"
	ConsentUploaded    ConsentStatus = "UPLOADED"
	ConsentVerified    ConsentStatus = "VERIFIED"
	ConsentRejected    ConsentStatus = "REJECTED"
	ConsentNotRequired ConsentStatus = "NOT_REQUIRED"
)

// OverlapConsent links a new application's boundary submission to a
// pre-existing application it overlaps. Unique on
// (NewApplicationID, AffectedApplicationID); a re-upload updates in place.
type OverlapConsent struct {
	ID                          string        `json:"id"`
	NewApplicationID            string        `json:"new_application_id"`
	NewCoordinateHistoryID      string        `json:"new_coordinate_history_id,omitempty"` // backfilled when coordinates are approved
	AffectedApplicationID       string        `json:"affected_application_id"`
	AffectedApplicationNo       string        `json:"affected_application_no"`
	AffectedCoordinateHistoryID string        `json:"affected_coordinate_history_id"`
	OverlapPercentage           float64       `json:"overlap_percentage"`
	OverlapAreaSqMeters         float64       `json:"overlap_area_sq_meters"`
	ConsentStatus               ConsentStatus `json:"consent_status"`
	ConsentFileURL              string        `json:"consent_file_url,omitempty"`
	ConsentFileName             string        `json:"consent_file_name,omitempty"`
	ConsentUploadedAt           *time.Time    `json:"consent_uploaded_at,omitempty"`
	ConsentUploadedBy           string        `json:"consent_uploaded_by,omitempty"`
	ConsentVerifiedAt           *time.Time    `json:"consent_verified_at,omitempty"`
	ConsentVerifiedBy           string        `json:"consent_verified_by,omitempty"`
	VerificationRemarks         string        `json:"verification_remarks,omitempty"`
	CreatedAt                   time.Time     `json:"created_at"`
	UpdatedAt                   time.Time     `json:"updated_at"`
}

package domain

import "time"

// Notification is a persisted message for a user, also published to the
// event bus for live delivery.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipient_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Link        string     `json:"link,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RecipientAdmins addresses a notification to the admin role rather than a
// single user; the delivery collaborator fans it out.
const RecipientAdmins = "role:admin"

// Notification types emitted by the pipeline.
const (
	NotifyCoordinateSubmitted = "coordinate_submitted"
	NotifyCoordinateReviewed  = "coordinate_reviewed"
	NotifyOverlapDetected     = "overlap_detected"
	NotifyConsentUploaded     = "consent_uploaded"
	NotifyConsentVerified     = "consent_verified"
	NotifyItemSubmitted       = "item_submitted"
	NotifyItemReviewed        = "item_reviewed"
	NotifyPhaseCompleted      = "phase_completed"
	NotifyApplicationVoided   = "application_voided"
)

// SweepResult is the aggregate outcome of one deadline sweep.
type SweepResult struct {
	AutoAccepted int      `json:"auto_accepted"`
	Voided       int      `json:"voided"`
	Errors       []string `json:"errors,omitempty"`
}

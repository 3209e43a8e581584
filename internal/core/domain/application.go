package domain

import "time"

// PermitType distinguishes the two sand-and-gravel permit kinds. The
// acceptance checklist is derived from it.
type PermitType string

const (
	PermitISAG PermitType = "ISAG" // industrial sand and gravel
	PermitCSAG PermitType = "CSAG" // commercial sand and gravel
)

// ApplicationStatus is the outward-visible projection of the per-record
// state machines (coordinates, consents, reviewable items).
type ApplicationStatus string

const (
	AppDraft                 ApplicationStatus = "DRAFT"
	AppPendingCoordApproval  ApplicationStatus = "PENDING_COORDINATE_APPROVAL"
	AppOverlapPendingConsent ApplicationStatus = "OVERLAP_DETECTED_PENDING_CONSENT"
	AppCoordRevisionRequired ApplicationStatus = "COORDINATE_REVISION_REQUIRED"
	AppAcceptanceInProgress  ApplicationStatus = "ACCEPTANCE_IN_PROGRESS"
	AppPendingOtherDocuments ApplicationStatus = "PENDING_OTHER_DOCUMENTS"
	AppUnderReview           ApplicationStatus = "UNDER_REVIEW"
	AppVoided                ApplicationStatus = "VOIDED"
)

// Application is a mining-permit application moving through the
// deadline-driven acceptance pipeline.
type Application struct {
	ID            string            `json:"id"`
	ApplicationNo string            `json:"application_no"`
	ApplicantID   string            `json:"applicant_id"`
	PermitType    PermitType        `json:"permit_type"`
	Status        ApplicationStatus `json:"status"`

	// The most recent coordinate submission awaiting admin review. It is
	// promoted into coordinate_history only on approval.
	PendingCoordinates     Polygon    `json:"pending_coordinates,omitempty"`
	CoordinatesSubmittedAt *time.Time `json:"coordinates_submitted_at,omitempty"`

	CoordinateReviewDeadline   *time.Time `json:"coordinate_review_deadline,omitempty"`
	CoordinateRevisionDeadline *time.Time `json:"coordinate_revision_deadline,omitempty"`
	CoordinateApprovedAt       *time.Time `json:"coordinate_approved_at,omitempty"`
	CoordinateAutoApproved     bool       `json:"coordinate_auto_approved"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusHistory is the audit row written for every application transition.
type StatusHistory struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"application_id"`
	FromStatus    ApplicationStatus `json:"from_status"`
	ToStatus      ApplicationStatus `json:"to_status"`
	ActorID       string            `json:"actor_id"`
	Remarks       string            `json:"remarks,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Actor is the authenticated identity supplied by the upstream gateway.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Actor roles.
const (
	RoleApplicant = "applicant"
	RoleAdmin     = "admin"
)

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

package domain

import "time"

// ItemKind separates the two review phases that share one state machine.
type ItemKind string

const (
	KindAcceptanceRequirement ItemKind = "acceptance_requirement"
	KindOtherDocument         ItemKind = "other_document"
)

// ItemStatus is the review state of a single requirement or document.
type ItemStatus string

const (
	ItemPendingSubmission ItemStatus = "PENDING_SUBMISSION"
	ItemPendingReview     ItemStatus = "PENDING_REVIEW"
	ItemAccepted          ItemStatus = "ACCEPTED"
	ItemRevisionRequired  ItemStatus = "REVISION_REQUIRED"
)

// ReviewableItem is the shared shape for acceptance requirements and other
// documents. While PENDING_REVIEW exactly one deadline (auto-accept) is
// set; while REVISION_REQUIRED only the revision deadline is set; both are
// cleared once the item is ACCEPTED or voided.
type ReviewableItem struct {
	ID            string     `json:"id"`
	ApplicationID string     `json:"application_id"`
	Kind          ItemKind   `json:"kind"`
	ItemType      string     `json:"item_type"`
	Order         int        `json:"order"`
	Status        ItemStatus `json:"status"`

	SubmittedAt   *time.Time     `json:"submitted_at,omitempty"`
	SubmittedBy   string         `json:"submitted_by,omitempty"`
	FileURL       string         `json:"file_url,omitempty"`
	FileName      string         `json:"file_name,omitempty"`
	SubmittedData map[string]any `json:"submitted_data,omitempty"`

	AutoAcceptDeadline *time.Time `json:"auto_accept_deadline,omitempty"`
	RevisionDeadline   *time.Time `json:"revision_deadline,omitempty"`
	IsAutoAccepted     bool       `json:"is_auto_accepted"`
	IsVoided           bool       `json:"is_voided"`

	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy   string     `json:"reviewed_by,omitempty"`
	AdminRemarks string     `json:"admin_remarks,omitempty"`

	// Compliance is evaluated later, independent of acceptance.
	IsCompliant *bool `json:"is_compliant,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AcceptanceChecklist returns the ordered requirement types for a permit type.
func AcceptanceChecklist(pt PermitType) []string {
	switch pt {
	case PermitISAG:
		return []string{
			"application_form",
			"survey_plan",
			"location_map",
			"work_program",
			"proof_of_technical_competence",
			"proof_of_financial_capability",
		}
	case PermitCSAG:
		return []string{
			"application_form",
			"survey_plan",
			"location_map",
			"work_program",
			"proof_of_financial_capability",
		}
	default:
		return nil
	}
}

// OtherDocumentChecklist returns the fixed second-phase document types,
// unlocked once every acceptance requirement is accepted.
func OtherDocumentChecklist() []string {
	return []string{
		"environmental_compliance_certificate",
		"area_status_clearance",
		"field_verification_report",
		"surety_bond",
		"proof_of_fee_payment",
	}
}

// AllAccepted reports whether every item in the set is ACCEPTED. Recomputed
// from the sibling set after each accept rather than kept as a counter.
func AllAccepted(items []ReviewableItem) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Status != ItemAccepted {
			return false
		}
	}
	return true
}

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// ConsentRepo implements ports.OverlapConsentRepository with pgx.
type ConsentRepo struct {
	db *DB
}

// NewConsentRepo creates a new ConsentRepo.
func NewConsentRepo(db *DB) *ConsentRepo {
	return &ConsentRepo{db: db}
}

const consentColumns = `
	id, new_application_id, COALESCE(new_coordinate_history_id, ''),
	affected_application_id, affected_application_no, affected_coordinate_history_id,
	overlap_percentage, overlap_area_sq_meters, consent_status,
	COALESCE(consent_file_url, ''), COALESCE(consent_file_name, ''),
	consent_uploaded_at, COALESCE(consent_uploaded_by, ''),
	consent_verified_at, COALESCE(consent_verified_by, ''),
	COALESCE(verification_remarks, ''), created_at, updated_at`

func scanConsent(row pgx.Row) (*domain.OverlapConsent, error) {
	var c domain.OverlapConsent
	err := row.Scan(
		&c.ID, &c.NewApplicationID, &c.NewCoordinateHistoryID,
		&c.AffectedApplicationID, &c.AffectedApplicationNo, &c.AffectedCoordinateHistoryID,
		&c.OverlapPercentage, &c.OverlapAreaSqMeters, &c.ConsentStatus,
		&c.ConsentFileURL, &c.ConsentFileName,
		&c.ConsentUploadedAt, &c.ConsentUploadedBy,
		&c.ConsentVerifiedAt, &c.ConsentVerifiedBy,
		&c.VerificationRemarks, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Upsert inserts a consent record, or overwrites the existing pair record.
// The conflict target is the (new, affected) application pair, so a
// resubmitted boundary reuses and resets the same row.
func (r *ConsentRepo) Upsert(ctx context.Context, c *domain.OverlapConsent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO overlap_consents (
			id, new_application_id, new_coordinate_history_id,
			affected_application_id, affected_application_no, affected_coordinate_history_id,
			overlap_percentage, overlap_area_sq_meters, consent_status,
			consent_file_url, consent_file_name,
			consent_uploaded_at, consent_uploaded_by,
			consent_verified_at, consent_verified_by,
			verification_remarks, created_at, updated_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9,
			NULLIF($10, ''), NULLIF($11, ''), $12, NULLIF($13, ''),
			$14, NULLIF($15, ''), NULLIF($16, ''), $17, $18)
		ON CONFLICT (new_application_id, affected_application_id) DO UPDATE
		SET affected_coordinate_history_id = EXCLUDED.affected_coordinate_history_id,
		    new_coordinate_history_id = EXCLUDED.new_coordinate_history_id,
		    overlap_percentage = EXCLUDED.overlap_percentage,
		    overlap_area_sq_meters = EXCLUDED.overlap_area_sq_meters,
		    consent_status = EXCLUDED.consent_status,
		    consent_file_url = EXCLUDED.consent_file_url,
		    consent_file_name = EXCLUDED.consent_file_name,
		    consent_uploaded_at = EXCLUDED.consent_uploaded_at,
		    consent_uploaded_by = EXCLUDED.consent_uploaded_by,
		    consent_verified_at = EXCLUDED.consent_verified_at,
		    consent_verified_by = EXCLUDED.consent_verified_by,
		    verification_remarks = EXCLUDED.verification_remarks,
		    updated_at = EXCLUDED.updated_at
	`, c.ID, c.NewApplicationID, c.NewCoordinateHistoryID,
		c.AffectedApplicationID, c.AffectedApplicationNo, c.AffectedCoordinateHistoryID,
		c.OverlapPercentage, c.OverlapAreaSqMeters, c.ConsentStatus,
		c.ConsentFileURL, c.ConsentFileName,
		c.ConsentUploadedAt, c.ConsentUploadedBy,
		c.ConsentVerifiedAt, c.ConsentVerifiedBy,
		c.VerificationRemarks, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetByID returns a consent record by id.
func (r *ConsentRepo) GetByID(ctx context.Context, id string) (*domain.OverlapConsent, error) {
	c, err := scanConsent(r.db.Pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM overlap_consents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "consent", ID: id}
	}
	return c, err
}

// GetByPair returns the consent record for an application pair.
func (r *ConsentRepo) GetByPair(ctx context.Context, newApplicationID, affectedApplicationID string) (*domain.OverlapConsent, error) {
	c, err := scanConsent(r.db.Pool.QueryRow(ctx,
		`SELECT `+consentColumns+` FROM overlap_consents WHERE new_application_id = $1 AND affected_application_id = $2`,
		newApplicationID, affectedApplicationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "consent", ID: newApplicationID + "/" + affectedApplicationID}
	}
	return c, err
}

// ListByApplication returns consents attached to a new application,
// largest overlap first.
func (r *ConsentRepo) ListByApplication(ctx context.Context, newApplicationID string) ([]domain.OverlapConsent, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+consentColumns+` FROM overlap_consents WHERE new_application_id = $1 ORDER BY overlap_percentage DESC`,
		newApplicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OverlapConsent
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// Update overwrites the mutable columns.
func (r *ConsentRepo) Update(ctx context.Context, c *domain.OverlapConsent) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE overlap_consents
		SET new_coordinate_history_id = NULLIF($2, ''), consent_status = $3,
		    consent_file_url = NULLIF($4, ''), consent_file_name = NULLIF($5, ''),
		    consent_uploaded_at = $6, consent_uploaded_by = NULLIF($7, ''),
		    consent_verified_at = $8, consent_verified_by = NULLIF($9, ''),
		    verification_remarks = NULLIF($10, ''), updated_at = $11
		WHERE id = $1
	`, c.ID, c.NewCoordinateHistoryID, c.ConsentStatus,
		c.ConsentFileURL, c.ConsentFileName,
		c.ConsentUploadedAt, c.ConsentUploadedBy,
		c.ConsentVerifiedAt, c.ConsentVerifiedBy,
		c.VerificationRemarks, c.UpdatedAt)
	return err
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// ApplicationRepo implements ports.ApplicationRepository with pgx.
type ApplicationRepo struct {
	db *DB
}

// NewApplicationRepo creates a new ApplicationRepo.
func NewApplicationRepo(db *DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

const applicationColumns = `
	id, application_no, applicant_id, permit_type, status,
	pending_coordinates, coordinates_submitted_at,
	coordinate_review_deadline, coordinate_revision_deadline,
	coordinate_approved_at, coordinate_auto_approved,
	created_at, updated_at`

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var a domain.Application
	err := row.Scan(
		&a.ID, &a.ApplicationNo, &a.ApplicantID, &a.PermitType, &a.Status,
		&a.PendingCoordinates, &a.CoordinatesSubmittedAt,
		&a.CoordinateReviewDeadline, &a.CoordinateRevisionDeadline,
		&a.CoordinateApprovedAt, &a.CoordinateAutoApproved,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a new application.
func (r *ApplicationRepo) Create(ctx context.Context, a *domain.Application) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO applications (
			id, application_no, applicant_id, permit_type, status,
			pending_coordinates, coordinates_submitted_at,
			coordinate_review_deadline, coordinate_revision_deadline,
			coordinate_approved_at, coordinate_auto_approved,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.ApplicationNo, a.ApplicantID, a.PermitType, a.Status,
		a.PendingCoordinates, a.CoordinatesSubmittedAt,
		a.CoordinateReviewDeadline, a.CoordinateRevisionDeadline,
		a.CoordinateApprovedAt, a.CoordinateAutoApproved,
		a.CreatedAt, a.UpdatedAt)
	return err
}

// GetByID returns an application by id.
func (r *ApplicationRepo) GetByID(ctx context.Context, id string) (*domain.Application, error) {
	a, err := scanApplication(r.db.Pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "application", ID: id}
	}
	return a, err
}

// Update overwrites the mutable columns.
func (r *ApplicationRepo) Update(ctx context.Context, a *domain.Application) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE applications
		SET status = $2, pending_coordinates = $3, coordinates_submitted_at = $4,
		    coordinate_review_deadline = $5, coordinate_revision_deadline = $6,
		    coordinate_approved_at = $7, coordinate_auto_approved = $8,
		    updated_at = $9
		WHERE id = $1
	`, a.ID, a.Status, a.PendingCoordinates, a.CoordinatesSubmittedAt,
		a.CoordinateReviewDeadline, a.CoordinateRevisionDeadline,
		a.CoordinateApprovedAt, a.CoordinateAutoApproved, a.UpdatedAt)
	return err
}

// UpdateIfStatus applies the update only while the stored status still
// matches; the row count tells the caller whether it won the race.
func (r *ApplicationRepo) UpdateIfStatus(ctx context.Context, a *domain.Application, expect domain.ApplicationStatus) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE applications
		SET status = $2, pending_coordinates = $3, coordinates_submitted_at = $4,
		    coordinate_review_deadline = $5, coordinate_revision_deadline = $6,
		    coordinate_approved_at = $7, coordinate_auto_approved = $8,
		    updated_at = $9
		WHERE id = $1 AND status = $10
	`, a.ID, a.Status, a.PendingCoordinates, a.CoordinatesSubmittedAt,
		a.CoordinateReviewDeadline, a.CoordinateRevisionDeadline,
		a.CoordinateApprovedAt, a.CoordinateAutoApproved, a.UpdatedAt, expect)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListByStatus returns applications in a status, oldest first.
func (r *ApplicationRepo) ListByStatus(ctx context.Context, status domain.ApplicationStatus, limit int) ([]domain.Application, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE status = $1 ORDER BY created_at LIMIT $2`,
		status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

// ExpiredCoordinateReviews returns applications whose admin review window
// has elapsed.
func (r *ApplicationRepo) ExpiredCoordinateReviews(ctx context.Context, now time.Time) ([]domain.Application, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = $1 AND coordinate_review_deadline IS NOT NULL AND coordinate_review_deadline < $2
		ORDER BY coordinate_review_deadline
	`, domain.AppPendingCoordApproval, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

// ExpiredCoordinateRevisions returns applications whose revision window
// has elapsed.
func (r *ApplicationRepo) ExpiredCoordinateRevisions(ctx context.Context, now time.Time) ([]domain.Application, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+applicationColumns+`
		FROM applications
		WHERE status = $1 AND coordinate_revision_deadline IS NOT NULL AND coordinate_revision_deadline < $2
		ORDER BY coordinate_revision_deadline
	`, domain.AppCoordRevisionRequired, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectApplications(rows)
}

func collectApplications(rows pgx.Rows) ([]domain.Application, error) {
	var out []domain.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AppendHistory writes one audit row.
func (r *ApplicationRepo) AppendHistory(ctx context.Context, h *domain.StatusHistory) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO application_status_history (id, application_id, from_status, to_status, actor_id, remarks, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.ApplicationID, h.FromStatus, h.ToStatus, h.ActorID, h.Remarks, h.CreatedAt)
	return err
}

// History returns the audit trail, oldest first.
func (r *ApplicationRepo) History(ctx context.Context, applicationID string) ([]domain.StatusHistory, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, application_id, from_status, to_status, actor_id, COALESCE(remarks, ''), created_at
		FROM application_status_history
		WHERE application_id = $1
		ORDER BY created_at
	`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StatusHistory
	for rows.Next() {
		var h domain.StatusHistory
		if err := rows.Scan(&h.ID, &h.ApplicationID, &h.FromStatus, &h.ToStatus, &h.ActorID, &h.Remarks, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

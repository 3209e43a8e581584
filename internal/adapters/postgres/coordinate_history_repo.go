package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/oredesk/permitflow/internal/core/domain"
	"github.com/oredesk/permitflow/internal/pkg/geospatial"
)

// CoordinateHistoryRepo implements ports.CoordinateHistoryRepository with pgx.
type CoordinateHistoryRepo struct {
	db *DB
}

// NewCoordinateHistoryRepo creates a new CoordinateHistoryRepo.
func NewCoordinateHistoryRepo(db *DB) *CoordinateHistoryRepo {
	return &CoordinateHistoryRepo{db: db}
}

const historyColumns = `
	id, application_id, coordinates, point_count,
	min_lat, min_lng, max_lat, max_lng,
	status, approved_at, approved_by, replaced_at, COALESCE(replaced_by, '')`

func scanHistory(row pgx.Row) (*domain.CoordinateHistory, error) {
	var h domain.CoordinateHistory
	err := row.Scan(
		&h.ID, &h.ApplicationID, &h.Coordinates, &h.PointCount,
		&h.Bounds.MinLat, &h.Bounds.MinLng, &h.Bounds.MaxLat, &h.Bounds.MaxLng,
		&h.Status, &h.ApprovedAt, &h.ApprovedBy, &h.ReplacedAt, &h.ReplacedBy,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Approve marks the application's current ACTIVE record REPLACED and
// inserts the new ACTIVE record in the same transaction.
func (r *CoordinateHistoryRepo) Approve(ctx context.Context, applicationID string, p domain.Polygon, approvedBy string, at time.Time) (*domain.CoordinateHistory, error) {
	bounds := geospatial.BoundingBox(p)
	rec := &domain.CoordinateHistory{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Coordinates:   p,
		PointCount:    len(p),
		Bounds:        bounds,
		Status:        domain.CoordActive,
		ApprovedAt:    at,
		ApprovedBy:    approvedBy,
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		UPDATE coordinate_history
		SET status = $1, replaced_at = $2, replaced_by = $3
		WHERE application_id = $4 AND status = $5
	`, domain.CoordReplaced, at, rec.ID, applicationID, domain.CoordActive); err != nil {
		return nil, fmt.Errorf("replace active: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO coordinate_history (
			id, application_id, coordinates, point_count,
			min_lat, min_lng, max_lat, max_lng,
			status, approved_at, approved_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rec.ID, rec.ApplicationID, rec.Coordinates, rec.PointCount,
		bounds.MinLat, bounds.MinLng, bounds.MaxLat, bounds.MaxLng,
		rec.Status, rec.ApprovedAt, rec.ApprovedBy); err != nil {
		return nil, fmt.Errorf("insert active: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// ActiveByApplication returns the single ACTIVE record, if any.
func (r *CoordinateHistoryRepo) ActiveByApplication(ctx context.Context, applicationID string) (*domain.CoordinateHistory, error) {
	h, err := scanHistory(r.db.Pool.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM coordinate_history WHERE application_id = $1 AND status = $2`,
		applicationID, domain.CoordActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "coordinate history", ID: applicationID}
	}
	return h, err
}

// ActiveSet returns every ACTIVE boundary joined with its application
// number, optionally excluding one application.
func (r *CoordinateHistoryRepo) ActiveSet(ctx context.Context, excludeApplicationID string) ([]domain.ReferencePolygon, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT h.id, h.application_id, a.application_no, h.coordinates,
		       h.min_lat, h.min_lng, h.max_lat, h.max_lng
		FROM coordinate_history h
		JOIN applications a ON a.id = h.application_id
		WHERE h.status = $1 AND ($2 = '' OR h.application_id <> $2)
	`, domain.CoordActive, excludeApplicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ReferencePolygon
	for rows.Next() {
		var ref domain.ReferencePolygon
		if err := rows.Scan(
			&ref.CoordinateHistoryID, &ref.ApplicationID, &ref.ApplicationNo, &ref.Polygon,
			&ref.Bounds.MinLat, &ref.Bounds.MinLng, &ref.Bounds.MaxLat, &ref.Bounds.MaxLng,
		); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// Void terminates the application's ACTIVE record.
func (r *CoordinateHistoryRepo) Void(ctx context.Context, applicationID string) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE coordinate_history SET status = $1
		WHERE application_id = $2 AND status = $3
	`, domain.CoordVoided, applicationID, domain.CoordActive)
	return err
}

// ListByApplication returns all versions, newest first.
func (r *CoordinateHistoryRepo) ListByApplication(ctx context.Context, applicationID string) ([]domain.CoordinateHistory, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+historyColumns+` FROM coordinate_history WHERE application_id = $1 ORDER BY approved_at DESC`,
		applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CoordinateHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

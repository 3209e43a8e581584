package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// ItemRepo implements ports.ReviewableItemRepository with pgx.
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new ItemRepo.
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

const itemColumns = `
	id, application_id, kind, item_type, sort_order, status,
	submitted_at, COALESCE(submitted_by, ''), COALESCE(file_url, ''), COALESCE(file_name, ''),
	submitted_data, auto_accept_deadline, revision_deadline,
	is_auto_accepted, is_voided,
	reviewed_at, COALESCE(reviewed_by, ''), COALESCE(admin_remarks, ''),
	is_compliant, created_at, updated_at`

func scanItem(row pgx.Row) (*domain.ReviewableItem, error) {
	var it domain.ReviewableItem
	err := row.Scan(
		&it.ID, &it.ApplicationID, &it.Kind, &it.ItemType, &it.Order, &it.Status,
		&it.SubmittedAt, &it.SubmittedBy, &it.FileURL, &it.FileName,
		&it.SubmittedData, &it.AutoAcceptDeadline, &it.RevisionDeadline,
		&it.IsAutoAccepted, &it.IsVoided,
		&it.ReviewedAt, &it.ReviewedBy, &it.AdminRemarks,
		&it.IsCompliant, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateBatch inserts a checklist using pgx.Batch.
func (r *ItemRepo) CreateBatch(ctx context.Context, items []domain.ReviewableItem) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO reviewable_items (id, application_id, kind, item_type, sort_order, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, it.ID, it.ApplicationID, it.Kind, it.ItemType, it.Order, it.Status, it.CreatedAt, it.UpdatedAt)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// GetByID returns an item by id.
func (r *ItemRepo) GetByID(ctx context.Context, id string) (*domain.ReviewableItem, error) {
	it, err := scanItem(r.db.Pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM reviewable_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "item", ID: id}
	}
	return it, err
}

// ListByApplication returns one kind's checklist in its defined order.
func (r *ItemRepo) ListByApplication(ctx context.Context, applicationID string, kind domain.ItemKind) ([]domain.ReviewableItem, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+itemColumns+` FROM reviewable_items WHERE application_id = $1 AND kind = $2 ORDER BY sort_order`,
		applicationID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

const itemUpdateSet = `
	status = $2, submitted_at = $3, submitted_by = NULLIF($4, ''),
	file_url = NULLIF($5, ''), file_name = NULLIF($6, ''), submitted_data = $7,
	auto_accept_deadline = $8, revision_deadline = $9,
	is_auto_accepted = $10, is_voided = $11,
	reviewed_at = $12, reviewed_by = NULLIF($13, ''), admin_remarks = NULLIF($14, ''),
	is_compliant = $15, updated_at = $16`

func itemUpdateArgs(it *domain.ReviewableItem) []any {
	return []any{
		it.ID, it.Status, it.SubmittedAt, it.SubmittedBy,
		it.FileURL, it.FileName, it.SubmittedData,
		it.AutoAcceptDeadline, it.RevisionDeadline,
		it.IsAutoAccepted, it.IsVoided,
		it.ReviewedAt, it.ReviewedBy, it.AdminRemarks,
		it.IsCompliant, it.UpdatedAt,
	}
}

// UpdateIfStatus applies the update only while the stored status still
// matches; see ApplicationRepo.UpdateIfStatus.
func (r *ItemRepo) UpdateIfStatus(ctx context.Context, it *domain.ReviewableItem, expect domain.ItemStatus) (bool, error) {
	args := append(itemUpdateArgs(it), expect)
	tag, err := r.db.Pool.Exec(ctx,
		`UPDATE reviewable_items SET `+itemUpdateSet+` WHERE id = $1 AND status = $17`, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Update overwrites the mutable columns unconditionally.
func (r *ItemRepo) Update(ctx context.Context, it *domain.ReviewableItem) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE reviewable_items SET `+itemUpdateSet+` WHERE id = $1`, itemUpdateArgs(it)...)
	return err
}

// ExpiredAutoAccepts returns submitted items whose review window elapsed.
func (r *ItemRepo) ExpiredAutoAccepts(ctx context.Context, now time.Time) ([]domain.ReviewableItem, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM reviewable_items
		WHERE status = $1 AND NOT is_voided
		  AND auto_accept_deadline IS NOT NULL AND auto_accept_deadline < $2
		ORDER BY auto_accept_deadline
	`, domain.ItemPendingReview, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

// ExpiredRevisions returns rejected items whose revision window elapsed.
func (r *ItemRepo) ExpiredRevisions(ctx context.Context, now time.Time) ([]domain.ReviewableItem, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM reviewable_items
		WHERE status = $1 AND NOT is_voided
		  AND revision_deadline IS NOT NULL AND revision_deadline < $2
		ORDER BY revision_deadline
	`, domain.ItemRevisionRequired, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows pgx.Rows) ([]domain.ReviewableItem, error) {
	var out []domain.ReviewableItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

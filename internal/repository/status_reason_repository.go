package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/erp-status-api/internal/models"
)

const reasonColumns = `id, category, code, description, requires_comment, requires_approval, active, created_at, updated_at`

// StatusReasonRepository persists the status change reason catalog.
type StatusReasonRepository struct {
	db *sqlx.DB
}

// NewStatusReasonRepository constructs the repository.
func NewStatusReasonRepository(db *sqlx.DB) *StatusReasonRepository {
	return &StatusReasonRepository{db: db}
}

// List returns reasons ordered by category and code.
func (r *StatusReasonRepository) List(ctx context.Context, filter models.StatusChangeReasonFilter) ([]models.StatusChangeReason, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + reasonColumns + " FROM status_change_reasons")

	args := make([]interface{}, 0, 1)
	conditions := make([]string, 0, 2)
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY category, code")

	var reasons []models.StatusChangeReason
	if err := r.db.SelectContext(ctx, &reasons, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list status change reasons: %w", err)
	}
	return reasons, nil
}

// FindByID fetches a reason by identifier.
func (r *StatusReasonRepository) FindByID(ctx context.Context, id string) (*models.StatusChangeReason, error) {
	query := "SELECT " + reasonColumns + " FROM status_change_reasons WHERE id = $1"
	var reason models.StatusChangeReason
	if err := r.db.GetContext(ctx, &reason, query, id); err != nil {
		return nil, err
	}
	return &reason, nil
}

// FindByCode fetches a reason by its code within a category.
func (r *StatusReasonRepository) FindByCode(ctx context.Context, category models.ReasonCategory, code string) (*models.StatusChangeReason, error) {
	query := "SELECT " + reasonColumns + " FROM status_change_reasons WHERE category = $1 AND code = $2"
	var reason models.StatusChangeReason
	if err := r.db.GetContext(ctx, &reason, query, category, code); err != nil {
		return nil, err
	}
	return &reason, nil
}

// Create inserts a new reason.
func (r *StatusReasonRepository) Create(ctx context.Context, reason *models.StatusChangeReason) error {
	if reason.ID == "" {
		reason.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	reason.CreatedAt = now
	reason.UpdatedAt = now
	const query = `INSERT INTO status_change_reasons (` + reasonColumns + `)
	VALUES (:id, :category, :code, :description, :requires_comment, :requires_approval, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reason); err != nil {
		return fmt.Errorf("create status change reason: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of a reason.
func (r *StatusReasonRepository) Update(ctx context.Context, reason *models.StatusChangeReason) error {
	reason.UpdatedAt = time.Now().UTC()
	const query = `UPDATE status_change_reasons SET code = :code, description = :description,
	requires_comment = :requires_comment, requires_approval = :requires_approval, active = :active, updated_at = :updated_at
	WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, reason)
	if err != nil {
		return fmt.Errorf("update status change reason: %w", err)
	}
	return expectRows(res, "update status change reason")
}

// Deactivate marks a reason inactive. Records keep referencing it.
func (r *StatusReasonRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE status_change_reasons SET active = FALSE, updated_at = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("deactivate status change reason: %w", err)
	}
	return expectRows(res, "deactivate status change reason")
}

// Seed inserts reasons whose category/code pair is not yet present and reports how many were added.
func (r *StatusReasonRepository) Seed(ctx context.Context, reasons []models.StatusChangeReason) (int, error) {
	const query = `INSERT INTO status_change_reasons (` + reasonColumns + `)
	VALUES (:id, :category, :code, :description, :requires_comment, :requires_approval, :active, :created_at, :updated_at)
	ON CONFLICT (category, code) DO NOTHING`
	inserted := 0
	now := time.Now().UTC()
	for i := range reasons {
		reason := reasons[i]
		if reason.ID == "" {
			reason.ID = uuid.NewString()
		}
		reason.CreatedAt = now
		reason.UpdatedAt = now
		res, err := r.db.NamedExecContext(ctx, query, &reason)
		if err != nil {
			return inserted, fmt.Errorf("seed reason %s/%s: %w", reason.Category, reason.Code, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	return inserted, nil
}

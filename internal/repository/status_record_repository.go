package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/erp-status-api/internal/models"
)

const recordColumns = `id, entity_type, entity_id, previous_status, new_status, reason_id, comment,
       changed_by, changed_at, approved_by, approved_at`

// StatusRecordRepository reads the append-only status change log.
type StatusRecordRepository struct {
	db *sqlx.DB
}

// NewStatusRecordRepository constructs the repository.
func NewStatusRecordRepository(db *sqlx.DB) *StatusRecordRepository {
	return &StatusRecordRepository{db: db}
}

// List returns records newest first together with the total number of matches.
func (r *StatusRecordRepository) List(ctx context.Context, filter models.StatusChangeRecordFilter) ([]models.StatusChangeRecord, int, error) {
	where, args := buildRecordFilter(filter)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM status_change_records"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count status change records: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	query := fmt.Sprintf("SELECT %s FROM status_change_records%s ORDER BY changed_at DESC LIMIT %d OFFSET %d",
		recordColumns, where, size, (page-1)*size)

	var records []models.StatusChangeRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list status change records: %w", err)
	}
	return records, total, nil
}

// FindByID fetches a single record.
func (r *StatusRecordRepository) FindByID(ctx context.Context, id string) (*models.StatusChangeRecord, error) {
	query := "SELECT " + recordColumns + " FROM status_change_records WHERE id = $1"
	var record models.StatusChangeRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// History returns every record for one entity, oldest first.
func (r *StatusRecordRepository) History(ctx context.Context, entityType, entityID string) ([]models.StatusChangeRecord, error) {
	query := "SELECT " + recordColumns + " FROM status_change_records WHERE entity_type = $1 AND entity_id = $2 ORDER BY changed_at ASC"
	var records []models.StatusChangeRecord
	if err := r.db.SelectContext(ctx, &records, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("status history for %s/%s: %w", entityType, entityID, err)
	}
	return records, nil
}

func buildRecordFilter(filter models.StatusChangeRecordFilter) (string, []interface{}) {
	args := make([]interface{}, 0, 5)
	conditions := make([]string, 0, 5)
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		conditions = append(conditions, fmt.Sprintf("entity_type = $%d", len(args)))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		conditions = append(conditions, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("new_status = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		conditions = append(conditions, fmt.Sprintf("changed_at >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		conditions = append(conditions, fmt.Sprintf("changed_at <= $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

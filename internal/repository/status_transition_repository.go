package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/erp-status-api/internal/models"
)

// ErrStaleStatus reports that an entity's status moved between read and write.
var ErrStaleStatus = errors.New("entity status changed concurrently")

// StatusTransitionRepository owns the single write path for status changes: the log
// entry and the entity row are written in one transaction.
type StatusTransitionRepository struct {
	db *sqlx.DB
}

// NewStatusTransitionRepository constructs the repository.
func NewStatusTransitionRepository(db *sqlx.DB) *StatusTransitionRepository {
	return &StatusTransitionRepository{db: db}
}

// CurrentStatus reads the status column of an entity row.
func (r *StatusTransitionRepository) CurrentStatus(ctx context.Context, def models.EntityDefinition, entityID string) (string, error) {
	if _, ok := models.LookupEntity(def.Type); !ok {
		return "", fmt.Errorf("unknown entity type %q", def.Type)
	}
	var status string
	query := fmt.Sprintf("SELECT status FROM %s WHERE id = $1", def.Table)
	if err := r.db.GetContext(ctx, &status, query, entityID); err != nil {
		return "", err
	}
	return status, nil
}

// Apply inserts the record and moves the entity from record.PreviousStatus to
// record.NewStatus. ErrStaleStatus is returned, and nothing is written, when the
// entity no longer holds the previous status.
func (r *StatusTransitionRepository) Apply(ctx context.Context, def models.EntityDefinition, record *models.StatusChangeRecord) (err error) {
	if _, ok := models.LookupEntity(def.Type); !ok {
		return fmt.Errorf("unknown entity type %q", def.Type)
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO status_change_records (id, entity_type, entity_id, previous_status, new_status, reason_id, comment,
       changed_by, changed_at, approved_by, approved_at)
	VALUES (:id, :entity_type, :entity_id, :previous_status, :new_status, :reason_id, :comment, :changed_by, :changed_at, :approved_by, :approved_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, record); err != nil {
		return fmt.Errorf("insert status change record: %w", err)
	}

	updateQuery := fmt.Sprintf("UPDATE %s SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4", def.Table)
	res, err := tx.ExecContext(ctx, updateQuery, record.NewStatus, record.ChangedAt, record.EntityID, record.PreviousStatus)
	if err != nil {
		return fmt.Errorf("update %s status: %w", def.Table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s status rows: %w", def.Table, err)
	}
	if rows == 0 {
		err = ErrStaleStatus
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit status transition: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/erp-status-api/internal/models"
)

// ErrStaleFence reports a movement carrying a fencing token older than one already applied.
var ErrStaleFence = errors.New("stale access token fence")

// ErrInsufficientStock reports a movement that would leave the quantity below zero.
var ErrInsufficientStock = errors.New("insufficient stock")

// StockRepository persists inventory rows and their movements.
type StockRepository struct {
	db *sqlx.DB
}

// NewStockRepository constructs the repository.
func NewStockRepository(db *sqlx.DB) *StockRepository {
	return &StockRepository{db: db}
}

// FindByID fetches an inventory item.
func (r *StockRepository) FindByID(ctx context.Context, id string) (*models.StockItem, error) {
	const query = `SELECT id, sku, name, quantity, status, last_fence, updated_at FROM stock_inventory WHERE id = $1`
	var item models.StockItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// ApplyMovement adds movement.Delta to the item quantity when movement.Fence is newer
// than the last applied fence and the result stays non-negative, and logs the movement
// in the same transaction.
func (r *StockRepository) ApplyMovement(ctx context.Context, movement *models.StockMovement) (item *models.StockItem, err error) {
	if movement.ID == "" {
		movement.ID = uuid.NewString()
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stock movement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const updateQuery = `UPDATE stock_inventory SET quantity = quantity + $1, last_fence = $2, updated_at = $3
	WHERE id = $4 AND last_fence < $2 AND quantity + $1 >= 0
	RETURNING id, sku, name, quantity, status, last_fence, updated_at`
	var updated models.StockItem
	err = tx.GetContext(ctx, &updated, updateQuery, movement.Delta, movement.Fence, movement.CreatedAt, movement.ItemID)
	if errors.Is(err, sql.ErrNoRows) {
		var current struct {
			Quantity  int   `db:"quantity"`
			LastFence int64 `db:"last_fence"`
		}
		if lookupErr := tx.GetContext(ctx, &current, `SELECT quantity, last_fence FROM stock_inventory WHERE id = $1`, movement.ItemID); lookupErr != nil {
			err = lookupErr
			return nil, err
		}
		if current.LastFence >= movement.Fence {
			err = ErrStaleFence
		} else {
			err = ErrInsufficientStock
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("apply stock movement: %w", err)
	}

	const insertQuery = `INSERT INTO stock_movements (id, item_id, operation, delta, fence, token, created_by, created_at)
	VALUES (:id, :item_id, :operation, :delta, :fence, :token, :created_by, :created_at)`
	if _, err = tx.NamedExecContext(ctx, insertQuery, movement); err != nil {
		return nil, fmt.Errorf("insert stock movement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stock movement: %w", err)
	}
	return &updated, nil
}

package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-status-api/internal/models"
)

var stockRowColumns = []string{"id", "sku", "name", "quantity", "status", "last_fence", "updated_at"}

func TestStockRepositoryApplyMovement(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStockRepository(db)
	movement := &models.StockMovement{ItemID: "sku-42", Operation: models.OperationSale, Delta: -3, Fence: 7, Token: "tok-1", CreatedBy: "user-1"}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stock_inventory SET quantity = quantity + $1")).
		WithArgs(-3, int64(7), sqlmock.AnyArg(), "sku-42").
		WillReturnRows(sqlmock.NewRows(stockRowColumns).AddRow("sku-42", "SKU-42", "Widget", 0, "active", 7, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO stock_movements")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	item, err := repo.ApplyMovement(context.Background(), movement)
	require.NoError(t, err)
	assert.Equal(t, 0, item.Quantity)
	assert.Equal(t, int64(7), item.LastFence)
	assert.NotEmpty(t, movement.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepositoryApplyMovementStaleFence(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStockRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stock_inventory SET quantity")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity, last_fence FROM stock_inventory WHERE id = $1")).
		WithArgs("sku-42").
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "last_fence"}).AddRow(5, 9))
	mock.ExpectRollback()

	_, err := repo.ApplyMovement(context.Background(), &models.StockMovement{ItemID: "sku-42", Delta: 1, Fence: 3})
	assert.ErrorIs(t, err, ErrStaleFence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepositoryApplyMovementInsufficientStock(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStockRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $4 AND last_fence < $2 AND quantity + $1 >= 0")).
		WithArgs(-5, int64(4), sqlmock.AnyArg(), "sku-42").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity, last_fence FROM stock_inventory WHERE id = $1")).
		WithArgs("sku-42").
		WillReturnRows(sqlmock.NewRows([]string{"quantity", "last_fence"}).AddRow(3, 2))
	mock.ExpectRollback()

	_, err := repo.ApplyMovement(context.Background(), &models.StockMovement{ItemID: "sku-42", Delta: -5, Fence: 4})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrStaleFence)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStockRepositoryApplyMovementMissingItem(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewStockRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE stock_inventory SET quantity")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT quantity, last_fence FROM stock_inventory")).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ApplyMovement(context.Background(), &models.StockMovement{ItemID: "ghost", Delta: 1, Fence: 1})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepositoryCreateDefaultsDraft(t *testing.T) {
	db, mock, cleanup := newStatusRepoMock(t)
	defer cleanup()

	repo := NewInvoiceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	invoice := &models.Invoice{Number: "INV-001", CustomerID: "cust-1", TotalAmount: 120.5, CreatedBy: "user-1"}
	require.NoError(t, repo.Create(context.Background(), invoice))
	assert.Equal(t, models.InvoiceDraft, invoice.Status)
	assert.NotEmpty(t, invoice.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

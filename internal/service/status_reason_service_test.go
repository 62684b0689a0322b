package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type reasonStoreStub struct {
	reasons   map[string]*models.StatusChangeReason
	listCalls int
	nextID    int
}

func newReasonStoreStub(reasons ...models.StatusChangeReason) *reasonStoreStub {
	stub := &reasonStoreStub{reasons: make(map[string]*models.StatusChangeReason)}
	for i := range reasons {
		r := reasons[i]
		stub.reasons[r.ID] = &r
	}
	return stub
}

func (s *reasonStoreStub) List(ctx context.Context, filter models.StatusChangeReasonFilter) ([]models.StatusChangeReason, error) {
	s.listCalls++
	var out []models.StatusChangeReason
	for _, r := range s.reasons {
		if filter.Category != "" && r.Category != filter.Category {
			continue
		}
		if filter.ActiveOnly && !r.Active {
			continue
		}
		out = append(out, *r)
	}
	return out, nil
}

func (s *reasonStoreStub) FindByID(ctx context.Context, id string) (*models.StatusChangeReason, error) {
	if r, ok := s.reasons[id]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *reasonStoreStub) FindByCode(ctx context.Context, category models.ReasonCategory, code string) (*models.StatusChangeReason, error) {
	for _, r := range s.reasons {
		if r.Category == category && r.Code == code {
			copy := *r
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *reasonStoreStub) Create(ctx context.Context, reason *models.StatusChangeReason) error {
	s.nextID++
	reason.ID = fmt.Sprintf("reason-%d", s.nextID)
	copy := *reason
	s.reasons[reason.ID] = &copy
	return nil
}

func (s *reasonStoreStub) Update(ctx context.Context, reason *models.StatusChangeReason) error {
	if _, ok := s.reasons[reason.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *reason
	s.reasons[reason.ID] = &copy
	return nil
}

func (s *reasonStoreStub) Deactivate(ctx context.Context, id string) error {
	r, ok := s.reasons[id]
	if !ok {
		return sql.ErrNoRows
	}
	r.Active = false
	return nil
}

func (s *reasonStoreStub) Seed(ctx context.Context, reasons []models.StatusChangeReason) (int, error) {
	inserted := 0
	for i := range reasons {
		if _, err := s.FindByCode(ctx, reasons[i].Category, reasons[i].Code); err == nil {
			continue
		}
		r := reasons[i]
		if err := s.Create(ctx, &r); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

type reasonCacheStub struct {
	entries     map[string][]models.StatusChangeReason
	invalidated []string
}

func newReasonCacheStub() *reasonCacheStub {
	return &reasonCacheStub{entries: make(map[string][]models.StatusChangeReason)}
}

func (c *reasonCacheStub) Get(ctx context.Context, key string, dest interface{}) bool {
	v, ok := c.entries[key]
	if !ok {
		return false
	}
	*(dest.(*[]models.StatusChangeReason)) = v
	return true
}

func (c *reasonCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	c.entries[key] = value.([]models.StatusChangeReason)
}

func (c *reasonCacheStub) Invalidate(ctx context.Context, pattern string) {
	c.invalidated = append(c.invalidated, pattern)
	c.entries = make(map[string][]models.StatusChangeReason)
}

func TestStatusReasonServiceListUsesCache(t *testing.T) {
	repo := newReasonStoreStub(models.StatusChangeReason{ID: "r-1", Category: models.ReasonCategoryStock, Code: "STOCK_OUT", Active: true})
	cache := newReasonCacheStub()
	svc := NewStatusReasonService(repo, cache, time.Minute, nil, nil)

	reasons, hit, err := svc.List(context.Background(), models.ReasonCategoryStock, true)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, reasons, 1)

	reasons, hit, err = svc.List(context.Background(), models.ReasonCategoryStock, true)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, reasons, 1)
	assert.Equal(t, 1, repo.listCalls)

	_, _, err = svc.List(context.Background(), "payroll", false)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStatusReasonServiceCreateRejectsDuplicates(t *testing.T) {
	repo := newReasonStoreStub()
	cache := newReasonCacheStub()
	svc := NewStatusReasonService(repo, cache, time.Minute, nil, nil)

	created, err := svc.Create(context.Background(), dto.CreateStatusReasonRequest{
		Category:    models.ReasonCategoryAsset,
		Code:        " asset_lost ",
		Description: "Lost",
	})
	require.NoError(t, err)
	assert.Equal(t, "ASSET_LOST", created.Code)
	assert.True(t, created.Active)
	assert.Equal(t, []string{reasonCachePattern}, cache.invalidated)

	_, err = svc.Create(context.Background(), dto.CreateStatusReasonRequest{
		Category:    models.ReasonCategoryAsset,
		Code:        "ASSET_LOST",
		Description: "Again",
	})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(context.Background(), dto.CreateStatusReasonRequest{Category: "payroll", Code: "X", Description: "bad"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestStatusReasonServiceUpdateAndDelete(t *testing.T) {
	repo := newReasonStoreStub(models.StatusChangeReason{ID: "r-1", Category: models.ReasonCategoryInvoice, Code: "INVOICE_REFUND", Description: "Refund", Active: true})
	svc := NewStatusReasonService(repo, nil, 0, nil, nil)

	approval := true
	desc := "Refund issued"
	updated, err := svc.Update(context.Background(), "r-1", dto.UpdateStatusReasonRequest{RequiresApproval: &approval, Description: &desc})
	require.NoError(t, err)
	assert.True(t, updated.RequiresApproval)
	assert.Equal(t, "Refund issued", updated.Description)

	require.NoError(t, svc.Delete(context.Background(), "r-1"))
	reason, err := svc.Get(context.Background(), "r-1")
	require.NoError(t, err)
	assert.False(t, reason.Active)

	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound)
	_, err = svc.Update(context.Background(), "missing", dto.UpdateStatusReasonRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestStatusReasonServiceResolve(t *testing.T) {
	repo := newReasonStoreStub(
		models.StatusChangeReason{ID: "r-emp", Category: models.ReasonCategoryEmployee, Code: "EMPLOYEE_SUSPENSION", Active: true},
		models.StatusChangeReason{ID: "r-gen", Category: models.ReasonCategoryGeneral, Code: "GENERAL_CORRECTION", Active: true},
	)
	svc := NewStatusReasonService(repo, nil, 0, nil, nil)
	ctx := context.Background()

	byID, err := svc.Resolve(ctx, models.ReasonCategoryStock, "r-emp")
	require.NoError(t, err)
	assert.Equal(t, "r-emp", byID.ID)

	byCode, err := svc.Resolve(ctx, models.ReasonCategoryEmployee, "employee_suspension")
	require.NoError(t, err)
	assert.Equal(t, "r-emp", byCode.ID)

	general, err := svc.Resolve(ctx, models.ReasonCategoryAsset, "GENERAL_CORRECTION")
	require.NoError(t, err)
	assert.Equal(t, "r-gen", general.ID)

	_, err = svc.Resolve(ctx, models.ReasonCategoryAsset, "EMPLOYEE_SUSPENSION")
	assert.ErrorIs(t, err, appErrors.ErrInvalidReason)

	_, err = svc.Resolve(ctx, models.ReasonCategoryAsset, " ")
	assert.ErrorIs(t, err, appErrors.ErrInvalidReason)
}

func TestStatusReasonServiceSeedDefaultsIsIdempotent(t *testing.T) {
	repo := newReasonStoreStub()
	svc := NewStatusReasonService(repo, nil, 0, nil, nil)

	inserted, err := svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(DefaultStatusReasons()), inserted)

	inserted, err = svc.SeedDefaults(context.Background())
	require.NoError(t, err)
	assert.Zero(t, inserted)

	for _, code := range []struct {
		cat  models.ReasonCategory
		code string
	}{
		{models.ReasonCategoryEmployee, ReasonEmployeeSuspension},
		{models.ReasonCategoryStock, ReasonStockOut},
		{models.ReasonCategoryInvoice, ReasonInvoiceWorkflowInit},
	} {
		_, err := repo.FindByCode(context.Background(), code.cat, code.code)
		assert.NoError(t, err, code.code)
	}
}

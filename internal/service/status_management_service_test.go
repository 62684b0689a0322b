package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/repository"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type transitionStoreStub struct {
	statuses map[string]string
	records  []models.StatusChangeRecord
	applyErr error
	// raceTo simulates a concurrent writer moving the entity just before Apply.
	raceTo string
}

func newTransitionStoreStub() *transitionStoreStub {
	return &transitionStoreStub{statuses: make(map[string]string)}
}

func (s *transitionStoreStub) set(entityType, id, status string) {
	s.statuses[entityType+"/"+id] = status
}

func (s *transitionStoreStub) get(entityType, id string) string {
	return s.statuses[entityType+"/"+id]
}

func (s *transitionStoreStub) CurrentStatus(ctx context.Context, def models.EntityDefinition, entityID string) (string, error) {
	status, ok := s.statuses[def.Type+"/"+entityID]
	if !ok {
		return "", sql.ErrNoRows
	}
	return status, nil
}

func (s *transitionStoreStub) Apply(ctx context.Context, def models.EntityDefinition, record *models.StatusChangeRecord) error {
	if s.applyErr != nil {
		return s.applyErr
	}
	key := def.Type + "/" + record.EntityID
	if s.raceTo != "" {
		s.statuses[key] = s.raceTo
	}
	if s.statuses[key] != record.PreviousStatus {
		return repository.ErrStaleStatus
	}
	record.ID = "rec-" + record.EntityID + "-" + record.NewStatus
	s.statuses[key] = record.NewStatus
	s.records = append(s.records, *record)
	return nil
}

func defaultReasonStore() *reasonStoreStub {
	return newReasonStoreStub(
		models.StatusChangeReason{ID: "r-susp", Category: models.ReasonCategoryEmployee, Code: ReasonEmployeeSuspension, Active: true},
		models.StatusChangeReason{ID: "r-term", Category: models.ReasonCategoryEmployee, Code: "EMPLOYEE_TERMINATION", Active: true, RequiresComment: true, RequiresApproval: true},
		models.StatusChangeReason{ID: "r-out", Category: models.ReasonCategoryStock, Code: ReasonStockOut, Active: true},
		models.StatusChangeReason{ID: "r-init", Category: models.ReasonCategoryInvoice, Code: ReasonInvoiceWorkflowInit, Active: true},
		models.StatusChangeReason{ID: "r-paid", Category: models.ReasonCategoryInvoice, Code: "INVOICE_PAYMENT_RECEIVED", Active: true},
		models.StatusChangeReason{ID: "r-old", Category: models.ReasonCategoryAsset, Code: "ASSET_OBSOLETE", Active: false},
		models.StatusChangeReason{ID: "r-gen", Category: models.ReasonCategoryGeneral, Code: "GENERAL_CORRECTION", Active: true},
	)
}

type statusFixture struct {
	store *transitionStoreStub
	bus   *events.Bus
	svc   *StatusManagementService
	now   time.Time
}

func newStatusFixture(t *testing.T) *statusFixture {
	t.Helper()
	store := newTransitionStoreStub()
	bus := events.NewBus(nil)
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	reasons := NewStatusReasonService(defaultReasonStore(), nil, 0, nil, nil)
	svc := NewStatusManagementService(store, reasons, bus, nil,
		WithSystemUserID("system"),
		WithStatusClock(func() time.Time { return now }),
		WithStatusMetrics(NewMetricsService()),
	)
	return &statusFixture{store: store, bus: bus, svc: svc, now: now}
}

func (f *statusFixture) capture(eventType events.Type) *[]events.Event {
	var seen []events.Event
	f.bus.Subscribe(eventType, func(ctx context.Context, e events.Event) error {
		seen = append(seen, e)
		return nil
	})
	return &seen
}

func TestChangeStatusRecordsAndPublishes(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityEmployees, "emp-1", models.EmployeeActive)
	seen := f.capture(events.TypeEmployeeUpdated)

	comment := "  policy breach  "
	record, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: "Employees",
		EntityID:   "emp-1",
		NewStatus:  "SUSPENDED",
		ReasonID:   "r-susp",
		Comment:    &comment,
	}, "user-7")
	require.NoError(t, err)

	assert.Equal(t, models.EmployeeActive, record.PreviousStatus)
	assert.Equal(t, models.EmployeeSuspended, record.NewStatus)
	assert.Equal(t, "r-susp", record.ReasonID)
	assert.Equal(t, "user-7", record.ChangedBy)
	assert.Equal(t, f.now, record.ChangedAt)
	require.NotNil(t, record.Comment)
	assert.Equal(t, "policy breach", *record.Comment)
	assert.Nil(t, record.ApprovedBy)
	assert.Equal(t, models.EmployeeSuspended, f.store.get(models.EntityEmployees, "emp-1"))

	require.Len(t, *seen, 1)
	evt := (*seen)[0].(events.EmployeeUpdated)
	assert.Equal(t, events.Transition{EntityID: "emp-1", PreviousStatus: "active", NewStatus: "suspended"}, evt.Transition)
}

func TestChangeStatusPreservesEventMapping(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityInvoices, "inv-1", models.InvoicePending)
	paid := f.capture(events.TypeInvoicePaid)

	_, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: models.EntityInvoices, EntityID: "inv-1", NewStatus: models.InvoiceVoid, ReasonID: "GENERAL_CORRECTION",
		Comment: strPtr("duplicate"),
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, *paid, 1)
	assert.Equal(t, models.InvoiceVoid, (*paid)[0].(events.InvoicePaid).NewStatus)
}

func TestChangeStatusUnmappedEntityOnlyLogs(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityExpenses, "exp-1", models.ExpensePending)
	counted := 0
	f.bus.SubscribeAll(func(ctx context.Context, e events.Event) error {
		counted++
		return nil
	})

	record, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: models.EntityExpenses, EntityID: "exp-1", NewStatus: models.ExpenseApproved, ReasonID: "r-gen", Comment: strPtr("ok"),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExpenseApproved, record.NewStatus)
	assert.Zero(t, counted)
}

func TestChangeStatusValidation(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityEmployees, "emp-1", models.EmployeeActive)
	f.store.set(models.EntityAssets, "asset-1", models.AssetAssigned)
	ctx := context.Background()

	cases := []struct {
		name string
		req  dto.ChangeStatusRequest
		user string
		want *appErrors.Error
	}{
		{"unknown entity", dto.ChangeStatusRequest{EntityType: "widgets", EntityID: "w", NewStatus: "x", ReasonID: "r-gen"}, "u", appErrors.ErrValidation},
		{"missing fields", dto.ChangeStatusRequest{EntityType: models.EntityEmployees}, "u", appErrors.ErrValidation},
		{"missing user", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: "suspended", ReasonID: "r-susp"}, "", appErrors.ErrValidation},
		{"status outside enum", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: "paid", ReasonID: "r-susp"}, "u", appErrors.ErrInvalidStatus},
		{"unknown reason", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: "suspended", ReasonID: "nope"}, "u", appErrors.ErrInvalidReason},
		{"category mismatch", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: "suspended", ReasonID: "r-out"}, "u", appErrors.ErrInvalidReason},
		{"inactive reason", dto.ChangeStatusRequest{EntityType: models.EntityAssets, EntityID: "asset-1", NewStatus: "retired", ReasonID: "r-old"}, "u", appErrors.ErrInvalidReason},
		{"comment required", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: "fired", ReasonID: "r-term", ApprovedBy: strPtr("boss")}, "u", appErrors.ErrValidation},
		{"approval required", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: "fired", ReasonID: "r-term", Comment: strPtr("gross misconduct")}, "u", appErrors.ErrPreconditionFailed},
		{"entity missing", dto.ChangeStatusRequest{EntityType: models.EntityEmployees, EntityID: "emp-404", NewStatus: "suspended", ReasonID: "r-susp"}, "u", appErrors.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ChangeStatus(ctx, tc.req, tc.user)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Empty(t, f.store.records)
	assert.Equal(t, models.EmployeeActive, f.store.get(models.EntityEmployees, "emp-1"))
}

func TestChangeStatusRecordsApproval(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityEmployees, "emp-1", models.EmployeeActive)

	record, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: models.EntityEmployees, EntityID: "emp-1", NewStatus: models.EmployeeFired, ReasonID: "r-term",
		Comment: strPtr("gross misconduct"), ApprovedBy: strPtr("hr-director"),
	}, "hr-1")
	require.NoError(t, err)
	require.NotNil(t, record.ApprovedBy)
	assert.Equal(t, "hr-director", *record.ApprovedBy)
	require.NotNil(t, record.ApprovedAt)
	assert.Equal(t, f.now, *record.ApprovedAt)
}

func TestChangeStatusConflictLeavesNoRecord(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityStock, "sku-42", models.StockActive)
	f.store.raceTo = models.StockDamaged
	seen := f.capture(events.TypeStockMovementUpdated)

	_, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: models.EntityStock, EntityID: "sku-42", NewStatus: models.StockLost, ReasonID: "r-out",
	}, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, f.store.records)
	assert.Empty(t, *seen)
}

func TestChangeStatusStoreFailure(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityStock, "sku-1", models.StockActive)
	f.store.applyErr = errors.New("connection reset")

	_, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: models.EntityStock, EntityID: "sku-1", NewStatus: models.StockLost, ReasonID: "r-out",
	}, "user-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestChangeStatusHandlerFailureDoesNotFailCall(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityAssets, "asset-1", models.AssetAssigned)
	f.bus.Subscribe(events.TypeAssetReturned, func(ctx context.Context, e events.Event) error {
		return errors.New("downstream unavailable")
	})

	record, err := f.svc.ChangeStatus(context.Background(), dto.ChangeStatusRequest{
		EntityType: models.EntityAssets, EntityID: "asset-1", NewStatus: models.AssetAvailable, ReasonID: "r-gen", Comment: strPtr("returned"),
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.AssetAvailable, record.NewStatus)
}

func TestEmployeeDeletedBecomesSuspension(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityEmployees, "emp-1", models.EmployeeActive)
	updated := f.capture(events.TypeEmployeeUpdated)

	require.NoError(t, f.bus.Publish(context.Background(), events.EmployeeDeleted{EmployeeID: "emp-1"}))

	require.Len(t, f.store.records, 1)
	record := f.store.records[0]
	assert.Equal(t, models.EmployeeSuspended, record.NewStatus)
	assert.Equal(t, "r-susp", record.ReasonID)
	assert.Equal(t, "system", record.ChangedBy)
	require.Len(t, *updated, 1)
	assert.Equal(t, models.EmployeeSuspended, (*updated)[0].(events.EmployeeUpdated).NewStatus)
}

func TestStockItemOutDiscontinuesOnlyWhenEmpty(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityStock, "sku-42", models.StockActive)

	require.NoError(t, f.bus.Publish(context.Background(), events.StockItemOut{ItemID: "sku-42", Quantity: 3}))
	assert.Empty(t, f.store.records)

	require.NoError(t, f.bus.Publish(context.Background(), events.StockItemOut{ItemID: "sku-42", Quantity: 0}))
	require.Len(t, f.store.records, 1)
	assert.Equal(t, models.StockDiscontinued, f.store.get(models.EntityStock, "sku-42"))
	assert.Equal(t, "r-out", f.store.records[0].ReasonID)
}

func TestInvoiceCreatedMovesToPending(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityInvoices, "inv-1", models.InvoiceDraft)

	require.NoError(t, f.bus.Publish(context.Background(), events.InvoiceCreated{InvoiceID: "inv-1"}))
	assert.Equal(t, models.InvoicePending, f.store.get(models.EntityInvoices, "inv-1"))
}

func TestBuiltInHandlerErrorsSurfaceOnPublish(t *testing.T) {
	f := newStatusFixture(t)
	err := f.bus.Publish(context.Background(), events.EmployeeDeleted{EmployeeID: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestDuplicateEventsTransitionTwice(t *testing.T) {
	f := newStatusFixture(t)
	f.store.set(models.EntityEmployees, "emp-1", models.EmployeeActive)

	evt := events.EmployeeDeleted{EmployeeID: "emp-1"}
	require.NoError(t, f.bus.Publish(context.Background(), evt))
	require.NoError(t, f.bus.Publish(context.Background(), evt))
	require.Len(t, f.store.records, 2)
	assert.Equal(t, models.EmployeeSuspended, f.store.records[1].PreviousStatus)
}

func strPtr(v string) *string { return &v }

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/middleware"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/service"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

func newTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-7", Role: models.RoleAdmin})
	return c, w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *appErrors.Error       `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type changerStub struct {
	req    dto.ChangeStatusRequest
	userID string
	err    error
}

func (s *changerStub) ChangeStatus(ctx context.Context, req dto.ChangeStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	s.req, s.userID = req, userID
	if s.err != nil {
		return nil, s.err
	}
	return &models.StatusChangeRecord{ID: "rec-1", EntityType: req.EntityType, EntityID: req.EntityID, NewStatus: req.NewStatus}, nil
}

type recordReaderStub struct {
	query dto.StatusRecordQuery
}

func (s *recordReaderStub) List(ctx context.Context, query dto.StatusRecordQuery) ([]models.StatusChangeRecord, *models.Pagination, error) {
	s.query = query
	return []models.StatusChangeRecord{{ID: "rec-1"}}, &models.Pagination{Page: 1, PageSize: 50, TotalCount: 1}, nil
}

func (s *recordReaderStub) Get(ctx context.Context, id string) (*models.StatusChangeRecord, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "status change record not found")
}

func (s *recordReaderStub) History(ctx context.Context, entityType, entityID string) ([]models.StatusChangeRecord, error) {
	return []models.StatusChangeRecord{}, nil
}

type exporterStub struct{}

func (exporterStub) Export(ctx context.Context, query dto.StatusRecordQuery, format string) (*service.ExportFile, error) {
	return &service.ExportFile{Filename: "status-changes.csv", ContentType: "text/csv", Body: []byte("a,b\n")}, nil
}

func TestStatusRecordCreate(t *testing.T) {
	changer := &changerStub{}
	h := NewStatusRecordHandler(&recordReaderStub{}, changer, exporterStub{})

	c, w := newTestContext(http.MethodPost, "/status-change-records", dto.ChangeStatusRequest{EntityType: "employees", EntityID: "emp-1", NewStatus: "on_leave", ReasonID: "r-1"})
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "user-7", changer.userID)
	assert.Equal(t, "emp-1", changer.req.EntityID)

	changer.err = appErrors.Clone(appErrors.ErrConflict, "status changed concurrently")
	c, w = newTestContext(http.MethodPost, "/status-change-records", dto.ChangeStatusRequest{EntityType: "employees", EntityID: "emp-1", NewStatus: "on_leave", ReasonID: "r-1"})
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decode(t, w).Error.Code)

	c, w = newTestContext(http.MethodPost, "/status-change-records", "{")
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusRecordListBindsQuery(t *testing.T) {
	reader := &recordReaderStub{}
	h := NewStatusRecordHandler(reader, &changerStub{}, exporterStub{})

	c, w := newTestContext(http.MethodGet, "/status-change-records?entityType=stock&page=2&pageSize=10&startDate=2024-01-01T00:00:00Z", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stock", reader.query.EntityType)
	assert.Equal(t, 2, reader.query.Page)
	require.NotNil(t, reader.query.StartDate)

	c, w = newTestContext(http.MethodGet, "/status-change-records/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusRecordExport(t *testing.T) {
	h := NewStatusRecordHandler(&recordReaderStub{}, &changerStub{}, exporterStub{})
	c, w := newTestContext(http.MethodGet, "/status-change-records/export?format=csv", nil)
	h.Export(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "status-changes.csv")
}

type reasonServiceStub struct {
	category models.ReasonCategory
	active   bool
}

func (s *reasonServiceStub) List(ctx context.Context, category models.ReasonCategory, activeOnly bool) ([]models.StatusChangeReason, bool, error) {
	s.category, s.active = category, activeOnly
	return []models.StatusChangeReason{{ID: "r-1", Category: models.ReasonCategoryStock, Code: "STOCK_OUT"}}, true, nil
}

func (s *reasonServiceStub) Get(ctx context.Context, id string) (*models.StatusChangeReason, error) {
	return &models.StatusChangeReason{ID: id}, nil
}

func (s *reasonServiceStub) Create(ctx context.Context, req dto.CreateStatusReasonRequest) (*models.StatusChangeReason, error) {
	return &models.StatusChangeReason{ID: "r-new", Category: req.Category, Code: req.Code}, nil
}

func (s *reasonServiceStub) Update(ctx context.Context, id string, req dto.UpdateStatusReasonRequest) (*models.StatusChangeReason, error) {
	return &models.StatusChangeReason{ID: id}, nil
}

func (s *reasonServiceStub) Delete(ctx context.Context, id string) error {
	if id == "missing" {
		return appErrors.Clone(appErrors.ErrNotFound, "status change reason not found")
	}
	return nil
}

func TestStatusReasonListReportsCacheHit(t *testing.T) {
	svc := &reasonServiceStub{}
	h := NewStatusReasonHandler(svc)

	c, w := newTestContext(http.MethodGet, "/status-change-reasons?category=Stock&activeOnly=false", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ReasonCategoryStock, svc.category)
	assert.False(t, svc.active)
	assert.Equal(t, true, decode(t, w).Meta["cache_hit"])

	c, w = newTestContext(http.MethodGet, "/status-change-reasons?category=payroll", nil)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusReasonDelete(t *testing.T) {
	h := NewStatusReasonHandler(&reasonServiceStub{})

	c, w := newTestContext(http.MethodDelete, "/status-change-reasons/r-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "r-1"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)

	c, w = newTestContext(http.MethodDelete, "/status-change-reasons/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type tokenServiceStub struct {
	req    dto.AccessTokenRequest
	holder string
	err    error
}

func (s *tokenServiceStub) Request(ctx context.Context, req dto.AccessTokenRequest, holderID string) (*models.StockAccessToken, error) {
	s.req, s.holder = req, holderID
	if s.err != nil {
		return nil, s.err
	}
	return &models.StockAccessToken{Token: "tok-1", Scope: req.Scope, EntityID: req.EntityID, Fence: 1}, nil
}

func (s *tokenServiceStub) Release(ctx context.Context, token, holderID string) error {
	return s.err
}

func (s *tokenServiceStub) Cancel(ctx context.Context, token, holderID string) error {
	return s.err
}

func TestAccessTokenHandlerBindsScope(t *testing.T) {
	svc := &tokenServiceStub{}
	h := NewAccessTokenHandler(svc, models.ScopePurchaseOrder)

	c, w := newTestContext(http.MethodPost, "/stock/purchase-orders/access-token", map[string]interface{}{
		"scope": "inventory", "entityId": "po-9", "operation": "receive", "ttlMs": 5000,
	})
	h.Request(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.ScopePurchaseOrder, svc.req.Scope)
	assert.Equal(t, 5000, svc.req.TTLMillis)
	assert.Equal(t, "user-7", svc.holder)

	svc.err = appErrors.Clone(appErrors.ErrTokenUnavailable, "locked")
	c, w = newTestContext(http.MethodPost, "/stock/purchase-orders/access-token", map[string]interface{}{"entityId": "po-9", "operation": "receive"})
	h.Request(c)
	assert.Equal(t, http.StatusLocked, w.Code)
	assert.Equal(t, "TOKEN_UNAVAILABLE", decode(t, w).Error.Code)

	c, w = newTestContext(http.MethodPost, "/stock/purchase-orders/access-token/tok-1/release", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok-1"}}
	h.Release(c)
	assert.Equal(t, http.StatusLocked, w.Code)
}

type hrServiceStub struct {
	record *models.StatusChangeRecord
	req    dto.DeleteEntityRequest
}

func (s *hrServiceStub) GetEmployee(ctx context.Context, id string) (*models.Employee, error) {
	return &models.Employee{ID: id, Status: models.EmployeeActive}, nil
}

func (s *hrServiceStub) DeleteEmployee(ctx context.Context, id string, req dto.DeleteEntityRequest, userID string) (*models.StatusChangeRecord, error) {
	s.req = req
	return s.record, nil
}

func TestEmployeeDelete(t *testing.T) {
	svc := &hrServiceStub{}
	h := NewEmployeeHandler(svc)

	c, w := newTestContext(http.MethodDelete, "/employees/emp-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	h.Delete(c)
	assert.Equal(t, http.StatusAccepted, w.Code)

	svc.record = &models.StatusChangeRecord{ID: "rec-1", NewStatus: models.EmployeeRetired}
	c, w = newTestContext(http.MethodDelete, "/employees/emp-1", dto.DeleteEntityRequest{Status: "retired", ReasonID: "r-ret"})
	c.Params = gin.Params{{Key: "id", Value: "emp-1"}}
	h.Delete(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "retired", svc.req.Status)
}

type accountingServiceStub struct {
	called string
}

func (s *accountingServiceStub) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	return &models.Invoice{ID: id}, nil
}

func (s *accountingServiceStub) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, userID string) (*models.Invoice, error) {
	return &models.Invoice{ID: "inv-1", Number: req.Number, Status: models.InvoicePending}, nil
}

func (s *accountingServiceStub) CancelInvoice(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	s.called = "cancel"
	return &models.StatusChangeRecord{ID: "rec-1"}, nil
}

func (s *accountingServiceStub) MarkInvoicePaid(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	s.called = "pay"
	return &models.StatusChangeRecord{ID: "rec-2"}, nil
}

func (s *accountingServiceStub) RefundInvoice(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	s.called = "refund"
	return &models.StatusChangeRecord{ID: "rec-3"}, nil
}

func TestInvoiceTransitionsRouteToService(t *testing.T) {
	svc := &accountingServiceStub{}
	h := NewInvoiceHandler(svc)

	for name, handle := range map[string]gin.HandlerFunc{"cancel": h.Cancel, "pay": h.Pay, "refund": h.Refund} {
		c, w := newTestContext(http.MethodPost, "/invoices/inv-1/"+name, dto.InvoiceStatusRequest{ReasonID: "r-1"})
		c.Params = gin.Params{{Key: "id", Value: "inv-1"}}
		handle(c)
		assert.Equal(t, http.StatusOK, w.Code, name)
		assert.Equal(t, name, svc.called)
	}

	c, w := newTestContext(http.MethodPost, "/invoices", dto.CreateInvoiceRequest{Number: "INV-1", CustomerID: "cus-1"})
	h.Create(c)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHealthReportsFailingChecks(t *testing.T) {
	h := NewMetricsHandler(nil, map[string]func() error{
		"redis": func() error { return appErrors.Clone(appErrors.ErrInternal, "connection refused") },
	})
	c, w := newTestContext(http.MethodGet, "/health", nil)
	h.Health(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h = NewMetricsHandler(nil, nil)
	c, w = newTestContext(http.MethodGet, "/health", nil)
	h.Health(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

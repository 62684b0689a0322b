package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

const reasonCachePattern = "reasons:*"

type reasonStore interface {
	List(ctx context.Context, filter models.StatusChangeReasonFilter) ([]models.StatusChangeReason, error)
	FindByID(ctx context.Context, id string) (*models.StatusChangeReason, error)
	FindByCode(ctx context.Context, category models.ReasonCategory, code string) (*models.StatusChangeReason, error)
	Create(ctx context.Context, reason *models.StatusChangeReason) error
	Update(ctx context.Context, reason *models.StatusChangeReason) error
	Deactivate(ctx context.Context, id string) error
	Seed(ctx context.Context, reasons []models.StatusChangeReason) (int, error)
}

type reasonCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

// StatusReasonService manages the catalog of status change reasons.
type StatusReasonService struct {
	repo      reasonStore
	cache     reasonCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStatusReasonService constructs the service. cache may be nil.
func NewStatusReasonService(repo reasonStore, cache reasonCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *StatusReasonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StatusReasonService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
	_ = svc.validator.RegisterValidation("reason_category", func(fl validator.FieldLevel) bool {
		return models.ReasonCategory(fl.Field().String()).Valid()
	})
	return svc
}

// List returns reasons, optionally restricted to one category and to active ones.
func (s *StatusReasonService) List(ctx context.Context, category models.ReasonCategory, activeOnly bool) ([]models.StatusChangeReason, bool, error) {
	if category != "" && !category.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown reason category %q", category))
	}
	key := reasonCacheKey(category, activeOnly)
	var cached []models.StatusChangeReason
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	reasons, err := s.repo.List(ctx, models.StatusChangeReasonFilter{Category: category, ActiveOnly: activeOnly})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list status change reasons")
	}
	if reasons == nil {
		reasons = []models.StatusChangeReason{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, reasons, s.cacheTTL)
	}
	return reasons, false, nil
}

// Get returns a reason by id.
func (s *StatusReasonService) Get(ctx context.Context, id string) (*models.StatusChangeReason, error) {
	reason, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "status change reason not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status change reason")
	}
	return reason, nil
}

// Create adds a reason. Codes are unique within their category.
func (s *StatusReasonService) Create(ctx context.Context, req dto.CreateStatusReasonRequest) (*models.StatusChangeReason, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Description = strings.TrimSpace(req.Description)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status change reason payload")
	}
	if err := s.ensureCodeFree(ctx, req.Category, req.Code, ""); err != nil {
		return nil, err
	}

	reason := &models.StatusChangeReason{
		Category:         req.Category,
		Code:             req.Code,
		Description:      req.Description,
		RequiresComment:  req.RequiresComment,
		RequiresApproval: req.RequiresApproval,
		Active:           true,
	}
	if err := s.repo.Create(ctx, reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create status change reason")
	}
	s.invalidate(ctx)
	s.logger.Info("status change reason created", zap.String("id", reason.ID), zap.String("code", reason.Code))
	return reason, nil
}

// Update applies a partial update.
func (s *StatusReasonService) Update(ctx context.Context, id string, req dto.UpdateStatusReasonRequest) (*models.StatusChangeReason, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status change reason payload")
	}
	reason, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if code == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "code cannot be empty")
		}
		if code != reason.Code {
			if err := s.ensureCodeFree(ctx, reason.Category, code, reason.ID); err != nil {
				return nil, err
			}
			reason.Code = code
		}
	}
	if req.Description != nil {
		reason.Description = strings.TrimSpace(*req.Description)
	}
	if req.RequiresComment != nil {
		reason.RequiresComment = *req.RequiresComment
	}
	if req.RequiresApproval != nil {
		reason.RequiresApproval = *req.RequiresApproval
	}
	if req.Active != nil {
		reason.Active = *req.Active
	}

	if err := s.repo.Update(ctx, reason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "status change reason not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status change reason")
	}
	s.invalidate(ctx)
	return reason, nil
}

// Delete deactivates a reason. Existing records keep pointing at it.
func (s *StatusReasonService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "status change reason not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete status change reason")
	}
	s.invalidate(ctx)
	s.logger.Info("status change reason deactivated", zap.String("id", id))
	return nil
}

// Resolve finds a reason by id, then by code within category, then by code within general.
func (s *StatusReasonService) Resolve(ctx context.Context, category models.ReasonCategory, idOrCode string) (*models.StatusChangeReason, error) {
	idOrCode = strings.TrimSpace(idOrCode)
	if idOrCode == "" {
		return nil, appErrors.Clone(appErrors.ErrInvalidReason, "reason is required")
	}

	reason, err := s.repo.FindByID(ctx, idOrCode)
	if err == nil {
		return reason, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve status change reason")
	}

	code := strings.ToUpper(idOrCode)
	for _, cat := range []models.ReasonCategory{category, models.ReasonCategoryGeneral} {
		if cat == "" {
			continue
		}
		reason, err = s.repo.FindByCode(ctx, cat, code)
		if err == nil {
			return reason, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve status change reason")
		}
		if cat == models.ReasonCategoryGeneral {
			break
		}
	}
	return nil, appErrors.Clone(appErrors.ErrInvalidReason, fmt.Sprintf("status change reason %q not found", idOrCode))
}

// SeedDefaults installs the built-in reason catalog and reports how many reasons were added.
func (s *StatusReasonService) SeedDefaults(ctx context.Context) (int, error) {
	inserted, err := s.repo.Seed(ctx, DefaultStatusReasons())
	if err != nil {
		return inserted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed status change reasons")
	}
	if inserted > 0 {
		s.invalidate(ctx)
	}
	return inserted, nil
}

func (s *StatusReasonService) ensureCodeFree(ctx context.Context, category models.ReasonCategory, code, selfID string) error {
	existing, err := s.repo.FindByCode(ctx, category, code)
	switch {
	case err == nil && existing.ID != selfID:
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("reason code %s already exists in %s", code, category))
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check reason code")
	}
}

func (s *StatusReasonService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, reasonCachePattern)
	}
}

func reasonCacheKey(category models.ReasonCategory, activeOnly bool) string {
	cat := string(category)
	if cat == "" {
		cat = "all"
	}
	if activeOnly {
		return "reasons:" + cat + ":active"
	}
	return "reasons:" + cat + ":any"
}

// Reason codes referenced by the built-in workflow handlers.
const (
	ReasonEmployeeSuspension  = "EMPLOYEE_SUSPENSION"
	ReasonStockOut            = "STOCK_OUT"
	ReasonInvoiceWorkflowInit = "INVOICE_WORKFLOW_INIT"
)

// DefaultStatusReasons is the catalog installed by SeedDefaults.
func DefaultStatusReasons() []models.StatusChangeReason {
	r := func(cat models.ReasonCategory, code, desc string, comment, approval bool) models.StatusChangeReason {
		return models.StatusChangeReason{Category: cat, Code: code, Description: desc, RequiresComment: comment, RequiresApproval: approval, Active: true}
	}
	return []models.StatusChangeReason{
		r(models.ReasonCategoryEmployee, ReasonEmployeeSuspension, "Employee suspended pending review", false, false),
		r(models.ReasonCategoryEmployee, "EMPLOYEE_RESIGNATION", "Employee resigned", false, false),
		r(models.ReasonCategoryEmployee, "EMPLOYEE_RETIREMENT", "Employee retired", false, false),
		r(models.ReasonCategoryEmployee, "EMPLOYEE_TERMINATION", "Employment terminated", true, true),
		r(models.ReasonCategoryEmployee, "EMPLOYEE_LEAVE", "Employee on leave", false, false),
		r(models.ReasonCategoryStock, ReasonStockOut, "Stock depleted", false, false),
		r(models.ReasonCategoryStock, "STOCK_DAMAGED", "Stock damaged", true, false),
		r(models.ReasonCategoryStock, "STOCK_RECALL", "Supplier recall", true, true),
		r(models.ReasonCategoryStock, "STOCK_RESTOCKED", "Stock replenished", false, false),
		r(models.ReasonCategoryInvoice, ReasonInvoiceWorkflowInit, "Invoice entered approval workflow", false, false),
		r(models.ReasonCategoryInvoice, "INVOICE_PAYMENT_RECEIVED", "Payment received", false, false),
		r(models.ReasonCategoryInvoice, "INVOICE_CANCELLED", "Invoice cancelled", true, false),
		r(models.ReasonCategoryInvoice, "INVOICE_REFUND", "Invoice refunded", true, true),
		r(models.ReasonCategoryAsset, "ASSET_END_OF_LIFE", "Asset reached end of life", false, false),
		r(models.ReasonCategoryAsset, "ASSET_LOST", "Asset lost or stolen", true, false),
		r(models.ReasonCategoryAsset, "ASSET_DAMAGED", "Asset damaged beyond repair", true, false),
		r(models.ReasonCategoryGeneral, "GENERAL_CORRECTION", "Administrative correction", true, false),
	}
}

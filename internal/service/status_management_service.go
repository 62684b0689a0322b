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
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/repository"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type transitionStore interface {
	CurrentStatus(ctx context.Context, def models.EntityDefinition, entityID string) (string, error)
	Apply(ctx context.Context, def models.EntityDefinition, record *models.StatusChangeRecord) error
}

type reasonResolver interface {
	Resolve(ctx context.Context, category models.ReasonCategory, idOrCode string) (*models.StatusChangeReason, error)
}

type eventBus interface {
	Subscribe(eventType events.Type, handler events.Handler) events.Subscription
	Publish(ctx context.Context, event events.Event) error
}

// StatusManagementService validates and applies status transitions for every
// status-managed entity and reacts to domain events that imply a transition.
type StatusManagementService struct {
	store        transitionStore
	reasons      reasonResolver
	bus          eventBus
	metrics      *MetricsService
	validator    *validator.Validate
	logger       *zap.Logger
	systemUserID string
	now          func() time.Time
}

// StatusManagementOption configures the service.
type StatusManagementOption func(*StatusManagementService)

// WithSystemUserID sets the user recorded for transitions triggered by domain events.
func WithSystemUserID(id string) StatusManagementOption {
	return func(s *StatusManagementService) {
		if id != "" {
			s.systemUserID = id
		}
	}
}

// WithStatusMetrics records committed transitions.
func WithStatusMetrics(metrics *MetricsService) StatusManagementOption {
	return func(s *StatusManagementService) {
		s.metrics = metrics
	}
}

// WithStatusClock overrides the time source.
func WithStatusClock(now func() time.Time) StatusManagementOption {
	return func(s *StatusManagementService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStatusManagementService constructs the service and subscribes its workflow handlers to bus.
func NewStatusManagementService(store transitionStore, reasons reasonResolver, bus eventBus, logger *zap.Logger, opts ...StatusManagementOption) *StatusManagementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &StatusManagementService{
		store:        store,
		reasons:      reasons,
		bus:          bus,
		validator:    validator.New(),
		logger:       logger,
		systemUserID: "system",
		now:          time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if bus != nil {
		bus.Subscribe(events.TypeEmployeeDeleted, svc.onEmployeeDeleted)
		bus.Subscribe(events.TypeStockItemOut, svc.onStockItemOut)
		bus.Subscribe(events.TypeInvoiceCreated, svc.onInvoiceCreated)
	}
	return svc
}

// SystemUserID returns the identity used for event-driven transitions.
func (s *StatusManagementService) SystemUserID() string {
	return s.systemUserID
}

// ChangeStatus moves an entity to req.NewStatus, appends the status change record
// and publishes the entity's update event.
func (s *StatusManagementService) ChangeStatus(ctx context.Context, req dto.ChangeStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	req.EntityType = strings.ToLower(strings.TrimSpace(req.EntityType))
	req.NewStatus = strings.ToLower(strings.TrimSpace(req.NewStatus))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status change payload")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "changing user is required")
	}

	def, ok := models.LookupEntity(req.EntityType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown entity type %q", req.EntityType))
	}
	if !def.Allows(req.NewStatus) {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("status %q is not valid for %s", req.NewStatus, def.Type))
	}

	reason, err := s.reasons.Resolve(ctx, def.Category, req.ReasonID)
	if err != nil {
		return nil, err
	}
	if !reason.Active {
		return nil, appErrors.Clone(appErrors.ErrInvalidReason, fmt.Sprintf("status change reason %s is inactive", reason.Code))
	}
	if !def.AcceptsReason(reason.Category) {
		return nil, appErrors.Clone(appErrors.ErrInvalidReason, fmt.Sprintf("reason %s (%s) cannot justify a %s status change", reason.Code, reason.Category, def.Type))
	}

	comment := trimmedOrNil(req.Comment)
	if reason.RequiresComment && comment == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("reason %s requires a comment", reason.Code))
	}
	approvedBy := trimmedOrNil(req.ApprovedBy)
	if reason.RequiresApproval && approvedBy == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("reason %s requires approval", reason.Code))
	}

	previous, err := s.store.CurrentStatus(ctx, def, req.EntityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", def.Type, req.EntityID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current status")
	}

	now := s.now().UTC()
	record := &models.StatusChangeRecord{
		EntityType:     def.Type,
		EntityID:       req.EntityID,
		PreviousStatus: previous,
		NewStatus:      req.NewStatus,
		ReasonID:       reason.ID,
		Comment:        comment,
		ChangedBy:      userID,
		ChangedAt:      now,
	}
	if approvedBy != nil {
		record.ApprovedBy = approvedBy
		record.ApprovedAt = &now
	}

	if err := s.store.Apply(ctx, def, record); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s %s status changed concurrently", def.Type, req.EntityID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply status change")
	}

	s.metrics.RecordStatusTransition(def.Type, record.NewStatus)
	s.logger.Info("status changed",
		zap.String("entity_type", def.Type),
		zap.String("entity_id", record.EntityID),
		zap.String("from", previous),
		zap.String("to", record.NewStatus),
		zap.String("reason", reason.Code),
		zap.String("changed_by", userID))

	s.publishTransition(ctx, def.Type, record)
	return record, nil
}

func (s *StatusManagementService) publishTransition(ctx context.Context, entityType string, record *models.StatusChangeRecord) {
	evt, ok := events.ForEntity(entityType, events.Transition{
		EntityID:       record.EntityID,
		PreviousStatus: record.PreviousStatus,
		NewStatus:      record.NewStatus,
	})
	if !ok {
		s.logger.Info("no domain event mapped for entity type", zap.String("entity_type", entityType))
		return
	}
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.logger.Warn("status event handlers failed", zap.String("event", string(evt.Type())), zap.Error(err))
	}
}

func (s *StatusManagementService) onEmployeeDeleted(ctx context.Context, evt events.Event) error {
	deleted, ok := evt.(events.EmployeeDeleted)
	if !ok {
		return nil
	}
	req := dto.ChangeStatusRequest{
		EntityType: models.EntityEmployees,
		EntityID:   deleted.EmployeeID,
		NewStatus:  models.EmployeeSuspended,
		ReasonID:   ReasonEmployeeSuspension,
	}
	if deleted.RequestedBy != "" {
		note := "deletion requested by " + deleted.RequestedBy
		req.Comment = &note
	}
	_, err := s.ChangeStatus(ctx, req, s.systemUserID)
	return err
}

func (s *StatusManagementService) onStockItemOut(ctx context.Context, evt events.Event) error {
	out, ok := evt.(events.StockItemOut)
	if !ok || out.Quantity > 0 {
		return nil
	}
	_, err := s.ChangeStatus(ctx, dto.ChangeStatusRequest{
		EntityType: models.EntityStock,
		EntityID:   out.ItemID,
		NewStatus:  models.StockDiscontinued,
		ReasonID:   ReasonStockOut,
	}, s.systemUserID)
	return err
}

func (s *StatusManagementService) onInvoiceCreated(ctx context.Context, evt events.Event) error {
	created, ok := evt.(events.InvoiceCreated)
	if !ok {
		return nil
	}
	_, err := s.ChangeStatus(ctx, dto.ChangeStatusRequest{
		EntityType: models.EntityInvoices,
		EntityID:   created.InvoiceID,
		NewStatus:  models.InvoicePending,
		ReasonID:   ReasonInvoiceWorkflowInit,
	}, s.systemUserID)
	return err
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

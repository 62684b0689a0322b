package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	appErrors "github.com/noah-isme/erp-status-api/pkg/errors"
)

type invoiceStore interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	FindByID(ctx context.Context, id string) (*models.Invoice, error)
}

// AccountingService exposes invoice lifecycle operations.
type AccountingService struct {
	repo      invoiceStore
	status    statusChanger
	bus       eventPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAccountingService constructs the service.
func NewAccountingService(repo invoiceStore, status statusChanger, bus eventPublisher, logger *zap.Logger) *AccountingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountingService{repo: repo, status: status, bus: bus, validator: validator.New(), logger: logger}
}

// GetInvoice returns an invoice.
func (s *AccountingService) GetInvoice(ctx context.Context, id string) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "invoice", "failed to load invoice")
	}
	return invoice, nil
}

// CreateInvoice stores a draft invoice and raises InvoiceCreated, which moves it into
// the approval workflow.
func (s *AccountingService) CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, userID string) (*models.Invoice, error) {
	req.Number = strings.TrimSpace(req.Number)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice payload")
	}
	invoice := &models.Invoice{
		Number:      req.Number,
		CustomerID:  req.CustomerID,
		TotalAmount: req.TotalAmount,
		Status:      models.InvoiceDraft,
		CreatedBy:   userID,
	}
	if err := s.repo.Create(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	if s.bus != nil {
		if err := s.bus.Publish(ctx, events.InvoiceCreated{InvoiceID: invoice.ID}); err != nil {
			s.logger.Warn("invoice workflow handlers failed", zap.String("invoice_id", invoice.ID), zap.Error(err))
		}
		if refreshed, err := s.repo.FindByID(ctx, invoice.ID); err == nil {
			invoice = refreshed
		}
	}
	return invoice, nil
}

// CancelInvoice moves an invoice to cancelled, or void when requested.
func (s *AccountingService) CancelInvoice(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = models.InvoiceCancelled
	}
	if status != models.InvoiceCancelled && status != models.InvoiceVoid {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("invoice cannot be cancelled into status %q", status))
	}
	return s.transition(ctx, id, status, req, userID)
}

// MarkInvoicePaid records a full payment, or a partial one when requested.
func (s *AccountingService) MarkInvoicePaid(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		status = models.InvoicePaid
	}
	if status != models.InvoicePaid && status != models.InvoicePartiallyPaid {
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("invoice payment cannot set status %q", status))
	}
	return s.transition(ctx, id, status, req, userID)
}

// RefundInvoice marks an invoice refunded.
func (s *AccountingService) RefundInvoice(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	return s.transition(ctx, id, models.InvoiceRefunded, req, userID)
}

func (s *AccountingService) transition(ctx context.Context, id, status string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invoice status payload")
	}
	return s.status.ChangeStatus(ctx, dto.ChangeStatusRequest{
		EntityType: models.EntityInvoices,
		EntityID:   id,
		NewStatus:  status,
		ReasonID:   req.ReasonID,
		Comment:    req.Comment,
		ApprovedBy: req.ApprovedBy,
	}, userID)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/erp-status-api/internal/dto"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/pkg/response"
)

type accountingService interface {
	GetInvoice(ctx context.Context, id string) (*models.Invoice, error)
	CreateInvoice(ctx context.Context, req dto.CreateInvoiceRequest, userID string) (*models.Invoice, error)
	CancelInvoice(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error)
	MarkInvoicePaid(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error)
	RefundInvoice(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error)
}

type invoiceTransition func(ctx context.Context, id string, req dto.InvoiceStatusRequest, userID string) (*models.StatusChangeRecord, error)

// InvoiceHandler exposes invoice endpoints.
type InvoiceHandler struct {
	service accountingService
}

// NewInvoiceHandler builds a new handler.
func NewInvoiceHandler(service accountingService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// Get godoc
// @Summary Get an invoice
// @Tags Invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoice, err := h.service.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Create godoc
// @Summary Create a draft invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param payload body dto.CreateInvoiceRequest true "Invoice"
// @Success 201 {object} response.Envelope
// @Router /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !bindJSON(c, &req, "invoice") {
		return
	}
	invoice, err := h.service.CreateInvoice(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// Cancel godoc
// @Summary Cancel or void an invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body dto.InvoiceStatusRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.CancelInvoice)
}

// Pay godoc
// @Summary Mark an invoice paid
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body dto.InvoiceStatusRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/pay [post]
func (h *InvoiceHandler) Pay(c *gin.Context) {
	h.transition(c, h.service.MarkInvoicePaid)
}

// Refund godoc
// @Summary Refund an invoice
// @Tags Invoices
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body dto.InvoiceStatusRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/refund [post]
func (h *InvoiceHandler) Refund(c *gin.Context) {
	h.transition(c, h.service.RefundInvoice)
}

func (h *InvoiceHandler) transition(c *gin.Context, apply invoiceTransition) {
	var req dto.InvoiceStatusRequest
	if !bindJSON(c, &req, "invoice status") {
		return
	}
	record, err := apply(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

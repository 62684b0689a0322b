package dto

import (
	"time"

	"github.com/noah-isme/erp-status-api/internal/models"
)

// ChangeStatusRequest moves an entity to a new status with a catalogued reason.
type ChangeStatusRequest struct {
	EntityType string  `json:"entityType" validate:"required"`
	EntityID   string  `json:"entityId" validate:"required"`
	NewStatus  string  `json:"newStatus" validate:"required"`
	ReasonID   string  `json:"reasonId" validate:"required"`
	Comment    *string `json:"comment,omitempty"`
	ApprovedBy *string `json:"approvedBy,omitempty"`
}

// CreateStatusReasonRequest adds a reason to the catalog.
type CreateStatusReasonRequest struct {
	Category         models.ReasonCategory `json:"category" validate:"required,reason_category"`
	Code             string                `json:"code" validate:"required,max=64"`
	Description      string                `json:"description" validate:"required,max=255"`
	RequiresComment  bool                  `json:"requiresComment"`
	RequiresApproval bool                  `json:"requiresApproval"`
}

// UpdateStatusReasonRequest patches a reason. Nil fields are left untouched.
type UpdateStatusReasonRequest struct {
	Code             *string `json:"code,omitempty" validate:"omitempty,max=64"`
	Description      *string `json:"description,omitempty" validate:"omitempty,max=255"`
	RequiresComment  *bool   `json:"requiresComment,omitempty"`
	RequiresApproval *bool   `json:"requiresApproval,omitempty"`
	Active           *bool   `json:"active,omitempty"`
}

// StatusRecordQuery mirrors the listing filters of the status change log.
type StatusRecordQuery struct {
	EntityType string     `form:"entityType"`
	EntityID   string     `form:"entityId"`
	Status     string     `form:"status"`
	StartDate  *time.Time `form:"startDate" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate    *time.Time `form:"endDate" time_format:"2006-01-02T15:04:05Z07:00"`
	Page       int        `form:"page"`
	PageSize   int        `form:"pageSize"`
}

// Filter converts the query into a repository filter.
func (q StatusRecordQuery) Filter() models.StatusChangeRecordFilter {
	return models.StatusChangeRecordFilter{
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		Status:     q.Status,
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
}

// DeleteEntityRequest moves an entity into one of its terminal statuses.
type DeleteEntityRequest struct {
	Status   string  `json:"status"`
	ReasonID string  `json:"reasonId"`
	Comment  *string `json:"comment,omitempty"`
}

// InvoiceStatusRequest carries the justification for an invoice transition.
type InvoiceStatusRequest struct {
	Status     string  `json:"status,omitempty"`
	ReasonID   string  `json:"reasonId" validate:"required"`
	Comment    *string `json:"comment,omitempty"`
	ApprovedBy *string `json:"approvedBy,omitempty"`
}

// CreateInvoiceRequest creates a draft invoice.
type CreateInvoiceRequest struct {
	Number      string  `json:"number" validate:"required,max=64"`
	CustomerID  string  `json:"customerId" validate:"required"`
	TotalAmount float64 `json:"totalAmount" validate:"gte=0"`
}

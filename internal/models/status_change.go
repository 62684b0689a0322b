package models

import "time"

// StatusChangeReason is a catalogued justification for a status transition.
type StatusChangeReason struct {
	ID               string         `db:"id" json:"id"`
	Category         ReasonCategory `db:"category" json:"category"`
	Code             string         `db:"code" json:"code"`
	Description      string         `db:"description" json:"description"`
	RequiresComment  bool           `db:"requires_comment" json:"requiresComment"`
	RequiresApproval bool           `db:"requires_approval" json:"requiresApproval"`
	Active           bool           `db:"active" json:"active"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// StatusChangeReasonFilter constrains reason listings.
type StatusChangeReasonFilter struct {
	Category   ReasonCategory
	ActiveOnly bool
}

// StatusChangeRecord is an immutable entry in the status transition log.
type StatusChangeRecord struct {
	ID             string     `db:"id" json:"id"`
	EntityType     string     `db:"entity_type" json:"entityType"`
	EntityID       string     `db:"entity_id" json:"entityId"`
	PreviousStatus string     `db:"previous_status" json:"previousStatus"`
	NewStatus      string     `db:"new_status" json:"newStatus"`
	ReasonID       string     `db:"reason_id" json:"reasonId"`
	Comment        *string    `db:"comment" json:"comment,omitempty"`
	ChangedBy      string     `db:"changed_by" json:"changedBy"`
	ChangedAt      time.Time  `db:"changed_at" json:"changedAt"`
	ApprovedBy     *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
}

// StatusChangeRecordFilter constrains record listings.
type StatusChangeRecordFilter struct {
	EntityType string
	EntityID   string
	Status     string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

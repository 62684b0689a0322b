package dto

import "github.com/noah-isme/erp-status-api/internal/models"

// AccessTokenRequest asks for an exclusive lease on an inventory item or purchase order.
type AccessTokenRequest struct {
	Scope     models.AccessTokenScope `json:"-"`
	EntityID  string                  `json:"entityId" validate:"required"`
	Operation models.StockOperation   `json:"operation" validate:"required"`
	Quantity  int                     `json:"quantity" validate:"gte=0"`
	Items     []models.TokenItem      `json:"items,omitempty" validate:"dive"`
	// TTLMillis overrides the default lease length. Values above the configured maximum are capped.
	TTLMillis int `json:"ttlMs,omitempty" validate:"gte=0"`
	// WaitMillis lets the caller queue for a held lease instead of failing immediately.
	WaitMillis int `json:"waitMs,omitempty" validate:"gte=0"`
}

// StockMovementRequest applies a quantity change under an access token.
type StockMovementRequest struct {
	Token     string                `json:"token" validate:"required"`
	Operation models.StockOperation `json:"operation" validate:"required"`
	Quantity  int                   `json:"quantity" validate:"required"`
}

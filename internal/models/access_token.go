package models

import "time"

// AccessTokenScope identifies what kind of entity a stock access token locks.
type AccessTokenScope string

const (
	ScopeInventory     AccessTokenScope = "inventory"
	ScopePurchaseOrder AccessTokenScope = "purchase_order"
)

// StockOperation is the mutation an access token authorises.
type StockOperation string

const (
	OperationSale       StockOperation = "sale"
	OperationTransfer   StockOperation = "transfer"
	OperationAdjustment StockOperation = "adjustment"
	OperationReceive    StockOperation = "receive"
	OperationCancel     StockOperation = "cancel"
	OperationApprove    StockOperation = "approve"
)

// AllowsOperation reports whether op can be performed under the scope.
func (s AccessTokenScope) AllowsOperation(op StockOperation) bool {
	switch s {
	case ScopeInventory:
		return op == OperationSale || op == OperationTransfer || op == OperationAdjustment
	case ScopePurchaseOrder:
		return op == OperationReceive || op == OperationCancel || op == OperationApprove
	default:
		return false
	}
}

// TokenOutcome describes how a token's lifetime ended.
type TokenOutcome string

const (
	TokenGranted   TokenOutcome = "granted"
	TokenDenied    TokenOutcome = "denied"
	TokenReleased  TokenOutcome = "released"
	TokenCancelled TokenOutcome = "cancelled"
	TokenExpired   TokenOutcome = "expired"
)

// TokenItem is one line of a multi-item purchase order token.
type TokenItem struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// StockAccessToken is an exclusive, time-bounded lease on one inventory item or purchase order.
type StockAccessToken struct {
	Token     string           `json:"token"`
	Scope     AccessTokenScope `json:"scope"`
	EntityID  string           `json:"entityId"`
	Operation StockOperation   `json:"operation"`
	Quantity  int              `json:"quantity,omitempty"`
	Items     []TokenItem      `json:"items,omitempty"`
	HolderID  string           `json:"holderId"`
	Fence     int64            `json:"fence"`
	IssuedAt  time.Time        `json:"issuedAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// LeaseKey is the key under which the token's lease is held.
func (t *StockAccessToken) LeaseKey() string {
	return LeaseKey(t.Scope, t.EntityID)
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *StockAccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// LeaseKey builds the per-entity lease key.
func LeaseKey(scope AccessTokenScope, entityID string) string {
	return string(scope) + ":" + entityID
}

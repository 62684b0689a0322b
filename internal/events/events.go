// Package events defines the domain events raised by status management and the
// synchronous bus that fans them out to subscribers.
package events

// Type names a domain event.
type Type string

const (
	TypeEmployeeUpdated      Type = "EMPLOYEE_UPDATED"
	TypeEmployeeDeleted      Type = "EMPLOYEE_DELETED"
	TypeStockMovementUpdated Type = "STOCK_MOVEMENT_UPDATED"
	TypeStockItemOut         Type = "STOCK_ITEM_OUT"
	TypeInvoiceCreated       Type = "INVOICE_CREATED"
	TypeInvoicePaid          Type = "INVOICE_PAID"
	TypeAssetReturned        Type = "ASSET_RETURNED"
)

// AllTypes lists every event type in a stable order.
var AllTypes = []Type{
	TypeEmployeeUpdated,
	TypeEmployeeDeleted,
	TypeStockMovementUpdated,
	TypeStockItemOut,
	TypeInvoiceCreated,
	TypeInvoicePaid,
	TypeAssetReturned,
}

// Event is implemented by every domain event variant.
type Event interface {
	Type() Type
	// Key identifies the entity the event concerns.
	Key() string
}

// Transition carries the status change that produced an update event.
type Transition struct {
	EntityID       string `json:"entityId"`
	PreviousStatus string `json:"previousStatus"`
	NewStatus      string `json:"newStatus"`
}

// Key implements Event.
func (t Transition) Key() string { return t.EntityID }

// EmployeeUpdated is raised after an employee status change.
type EmployeeUpdated struct{ Transition }

func (EmployeeUpdated) Type() Type { return TypeEmployeeUpdated }

// StockMovementUpdated is raised after a stock item status change.
type StockMovementUpdated struct{ Transition }

func (StockMovementUpdated) Type() Type { return TypeStockMovementUpdated }

// InvoicePaid is raised after any invoice status change.
type InvoicePaid struct{ Transition }

func (InvoicePaid) Type() Type { return TypeInvoicePaid }

// AssetReturned is raised after any asset status change.
type AssetReturned struct{ Transition }

func (AssetReturned) Type() Type { return TypeAssetReturned }

// EmployeeDeleted requests removal of an employee. Status management turns it into a suspension.
type EmployeeDeleted struct {
	EmployeeID  string `json:"employeeId"`
	RequestedBy string `json:"requestedBy,omitempty"`
}

func (EmployeeDeleted) Type() Type { return TypeEmployeeDeleted }
func (e EmployeeDeleted) Key() string { return e.EmployeeID }

// StockItemOut reports the remaining quantity of an item after a movement.
type StockItemOut struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func (StockItemOut) Type() Type { return TypeStockItemOut }
func (e StockItemOut) Key() string { return e.ItemID }

// InvoiceCreated is raised once a draft invoice has been stored.
type InvoiceCreated struct {
	InvoiceID string `json:"invoiceId"`
}

func (InvoiceCreated) Type() Type { return TypeInvoiceCreated }
func (e InvoiceCreated) Key() string { return e.InvoiceID }

// ForEntity builds the update event mapped to an entity type. Entity types without
// a mapping return false.
func ForEntity(entityType string, t Transition) (Event, bool) {
	switch entityType {
	case "employees":
		return EmployeeUpdated{t}, true
	case "stock":
		return StockMovementUpdated{t}, true
	case "invoices":
		return InvoicePaid{t}, true
	case "assets":
		return AssetReturned{t}, true
	default:
		return nil, false
	}
}

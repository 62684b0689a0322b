package models

// ReasonCategory groups status change reasons by the entity family they apply to.
type ReasonCategory string

const (
	ReasonCategoryEmployee ReasonCategory = "employee"
	ReasonCategoryStock    ReasonCategory = "stock"
	ReasonCategoryInvoice  ReasonCategory = "invoice"
	ReasonCategoryAsset    ReasonCategory = "asset"
	ReasonCategoryGeneral  ReasonCategory = "general"
)

// Valid reports whether the category is one of the known values.
func (c ReasonCategory) Valid() bool {
	switch c {
	case ReasonCategoryEmployee, ReasonCategoryStock, ReasonCategoryInvoice, ReasonCategoryAsset, ReasonCategoryGeneral:
		return true
	default:
		return false
	}
}

// Entity type keys as used in REST paths and status change records.
const (
	EntityEmployees = "employees"
	EntityStock     = "stock"
	EntityInvoices  = "invoices"
	EntityAssets    = "assets"
	EntityExpenses  = "expenses"
)

// EmployeeStatus values.
const (
	EmployeeActive    = "active"
	EmployeeOnLeave   = "on_leave"
	EmployeeSuspended = "suspended"
	EmployeeRetired   = "retired"
	EmployeeFired     = "fired"
	EmployeeDeceased  = "deceased"
	EmployeeResigned  = "resigned"
)

// StockItemStatus values.
const (
	StockActive       = "active"
	StockDiscontinued = "discontinued"
	StockDamaged      = "damaged"
	StockLost         = "lost"
	StockStolen       = "stolen"
	StockExpired      = "expired"
	StockRecalled     = "recalled"
)

// InvoiceStatus values.
const (
	InvoiceDraft         = "draft"
	InvoicePending       = "pending"
	InvoicePaid          = "paid"
	InvoicePartiallyPaid = "partially_paid"
	InvoiceOverdue       = "overdue"
	InvoiceCancelled     = "cancelled"
	InvoiceVoid          = "void"
	InvoiceRefunded      = "refunded"
)

// AssetStatus values.
const (
	AssetAvailable   = "available"
	AssetAssigned    = "assigned"
	AssetMaintenance = "maintenance"
	AssetRetired     = "retired"
	AssetLost        = "lost"
	AssetStolen      = "stolen"
	AssetDamaged     = "damaged"
)

// ExpenseStatus values.
const (
	ExpensePending   = "pending"
	ExpenseApproved  = "approved"
	ExpenseRejected  = "rejected"
	ExpensePaid      = "paid"
	ExpenseCancelled = "cancelled"
)

// EntityDefinition describes how a resource participates in status management.
type EntityDefinition struct {
	Type     string
	Table    string
	Category ReasonCategory
	Statuses []string
	// Terminal lists the statuses a "delete" may move the entity into.
	Terminal []string
}

// Allows reports whether status belongs to the entity's status set.
func (d EntityDefinition) Allows(status string) bool {
	return contains(d.Statuses, status)
}

// IsTerminal reports whether status is one of the entity's delete targets.
func (d EntityDefinition) IsTerminal(status string) bool {
	return contains(d.Terminal, status)
}

// AcceptsReason reports whether a reason of the given category may justify a change.
func (d EntityDefinition) AcceptsReason(category ReasonCategory) bool {
	return category == d.Category || category == ReasonCategoryGeneral
}

// EntityDefinitions is the catalog of status-managed resources keyed by entity type.
var EntityDefinitions = map[string]EntityDefinition{
	EntityEmployees: {
		Type:     EntityEmployees,
		Table:    "employees",
		Category: ReasonCategoryEmployee,
		Statuses: []string{EmployeeActive, EmployeeOnLeave, EmployeeSuspended, EmployeeRetired, EmployeeFired, EmployeeDeceased, EmployeeResigned},
		Terminal: []string{EmployeeSuspended, EmployeeRetired, EmployeeFired, EmployeeDeceased, EmployeeResigned},
	},
	EntityStock: {
		Type:     EntityStock,
		Table:    "stock_inventory",
		Category: ReasonCategoryStock,
		Statuses: []string{StockActive, StockDiscontinued, StockDamaged, StockLost, StockStolen, StockExpired, StockRecalled},
		Terminal: []string{StockDiscontinued, StockDamaged, StockLost, StockStolen, StockExpired, StockRecalled},
	},
	EntityInvoices: {
		Type:     EntityInvoices,
		Table:    "invoices",
		Category: ReasonCategoryInvoice,
		Statuses: []string{InvoiceDraft, InvoicePending, InvoicePaid, InvoicePartiallyPaid, InvoiceOverdue, InvoiceCancelled, InvoiceVoid, InvoiceRefunded},
		Terminal: []string{InvoiceCancelled, InvoiceVoid},
	},
	EntityAssets: {
		Type:     EntityAssets,
		Table:    "assets",
		Category: ReasonCategoryAsset,
		Statuses: []string{AssetAvailable, AssetAssigned, AssetMaintenance, AssetRetired, AssetLost, AssetStolen, AssetDamaged},
		Terminal: []string{AssetRetired, AssetLost, AssetStolen, AssetDamaged},
	},
	EntityExpenses: {
		Type:     EntityExpenses,
		Table:    "expenses",
		Category: ReasonCategoryGeneral,
		Statuses: []string{ExpensePending, ExpenseApproved, ExpenseRejected, ExpensePaid, ExpenseCancelled},
		Terminal: []string{ExpenseCancelled, ExpenseRejected},
	},
}

// LookupEntity returns the definition for an entity type.
func LookupEntity(entityType string) (EntityDefinition, bool) {
	def, ok := EntityDefinitions[entityType]
	return def, ok
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

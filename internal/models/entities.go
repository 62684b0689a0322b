package models

import "time"

// StockItem is an inventory row. LastFence is the highest access-token fence applied to it.
type StockItem struct {
	ID        string    `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Quantity  int       `db:"quantity" json:"quantity"`
	Status    string    `db:"status" json:"status"`
	LastFence int64     `db:"last_fence" json:"lastFence"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// StockMovement is an applied quantity change on a stock item.
type StockMovement struct {
	ID        string         `db:"id" json:"id"`
	ItemID    string         `db:"item_id" json:"itemId"`
	Operation StockOperation `db:"operation" json:"operation"`
	Delta     int            `db:"delta" json:"delta"`
	Fence     int64          `db:"fence" json:"fence"`
	Token     string         `db:"token" json:"token"`
	CreatedBy string         `db:"created_by" json:"createdBy"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
}

// Employee is the HR view needed for status management.
type Employee struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"fullName"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Invoice is the accounting view needed for status management.
type Invoice struct {
	ID          string    `db:"id" json:"id"`
	Number      string    `db:"number" json:"number"`
	CustomerID  string    `db:"customer_id" json:"customerId"`
	TotalAmount float64   `db:"total_amount" json:"totalAmount"`
	Status      string    `db:"status" json:"status"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Asset is the asset-register view needed for status management.
type Asset struct {
	ID        string    `db:"id" json:"id"`
	Tag       string    `db:"tag" json:"tag"`
	Name      string    `db:"name" json:"name"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

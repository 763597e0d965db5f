package catalog

import "time"

// Product represents a catalog entry. Stock is owned by the inventory ledger
// and mutated only through its conditional updates.
type Product struct {
	ID                int64     `json:"id"`
	SKU               string    `json:"sku"`
	Barcode           string    `json:"barcode"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	Unit              string    `json:"unit"`
	Price             float64   `json:"price"`
	Stock             int       `json:"stock"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateProductRequest carries fields for a new product. SKU and barcode are
// generated when absent.
type CreateProductRequest struct {
	SKU               string  `json:"sku" validate:"omitempty,max=50"`
	Barcode           string  `json:"barcode" validate:"omitempty,len=12,numeric"`
	Name              string  `json:"name" validate:"required,max=200"`
	Category          string  `json:"category" validate:"max=100"`
	Unit              string  `json:"unit" validate:"max=20"`
	Price             float64 `json:"price" validate:"gte=0"`
	Stock             int     `json:"stock" validate:"gte=0"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
}

// UpdateProductRequest carries partial updates. SKU and barcode are immutable.
type UpdateProductRequest struct {
	Name              *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Category          *string  `json:"category,omitempty" validate:"omitempty,max=100"`
	Unit              *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	Price             *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	LowStockThreshold *int     `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search   string
	Category string
	IsActive *bool
	Page     int
	Limit    int
}

// DefaultLowStockThreshold applies when a product does not set its own.
const DefaultLowStockThreshold = 10

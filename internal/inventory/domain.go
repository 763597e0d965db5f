package inventory

import (
	"errors"
	"fmt"
)

// ErrInsufficientStock triggered when a decrement would drive stock negative.
var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// InsufficientStockError reports which SKU failed and what was available.
type InsufficientStockError struct {
	SKU       string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for %s: requested %d, available %d", e.SKU, e.Requested, e.Available)
}

// Unwrap lets callers match with errors.Is(err, ErrInsufficientStock).
func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// RestockInput describes an inbound stock movement.
type RestockInput struct {
	SKU     string `json:"sku" validate:"required"`
	Qty     int    `json:"qty" validate:"required,gt=0"`
	Note    string `json:"note" validate:"max=500"`
	ActorID int64  `json:"-"`
}

package sales

import "time"

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodUPI  PaymentMethod = "upi"
)

// ValidPaymentMethod reports whether the method is accepted.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI:
		return true
	}
	return false
}

// PaymentStatus enumerates settlement states.
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
)

// ValidPaymentStatus reports whether the status is accepted.
func ValidPaymentStatus(s PaymentStatus) bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusPending:
		return true
	}
	return false
}

// SaleItem is one line of a recorded sale. Price is the unit price the sale
// was settled at.
type SaleItem struct {
	SKU       string  `json:"sku"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
	LineTotal float64 `json:"line_total"`
}

// Sale is an immutable record of one completed transaction.
type Sale struct {
	ID            int64         `json:"-"`
	SaleID        string        `json:"sale_id"`
	Items         []SaleItem    `json:"items"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CreatedByUser is the display identity of the recording cashier.
type CreatedByUser struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SaleWithUser is a sale enriched with its creator's identity.
type SaleWithUser struct {
	Sale
	CreatedByUser CreatedByUser `json:"created_by_user"`
}

// RecordSaleRequest is the cart submitted by the client.
type RecordSaleRequest struct {
	Items         []RecordSaleItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod    `json:"payment_method" validate:"required"`
	PaymentStatus PaymentStatus    `json:"payment_status,omitempty"`
}

// RecordSaleItem is one cart line.
type RecordSaleItem struct {
	SKU   string  `json:"sku" validate:"required"`
	Qty   int     `json:"qty" validate:"required,gte=1"`
	Price float64 `json:"price" validate:"gte=0"`
}

// ListFilter narrows sale listings. Zero time bounds mean unbounded.
type ListFilter struct {
	From  time.Time
	To    time.Time
	Page  int
	Limit int
}

package procurement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papeleria/papeleria/internal/lineitem"
	"github.com/papeleria/papeleria/internal/shared"
)

// DefaultPaymentMethod applies when a purchase omits the payment method.
const DefaultPaymentMethod = "Cash"

// Purchase is a supplier order. Its stock enters inventory when it reaches
// Completed, either at creation or through a status transition.
type Purchase struct {
	ID            int64           `json:"id"`
	SupplierID    int64           `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	Status        shared.Status   `json:"status"`
	Total         decimal.Decimal `json:"total"`
	Observations  string          `json:"observations,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []Line          `json:"lines"`
}

// Line is one purchased product at the supplier's unit price.
type Line struct {
	ID         int64 `json:"id"`
	PurchaseID int64 `json:"purchase_id"`
	LineNo     int   `json:"line_no"`
	lineitem.Line
	ProductName string `json:"product_name,omitempty"`
}

// SupplierRef is the supplier view needed to accept a purchase.
type SupplierRef struct {
	ID     int64
	Name   string
	Active bool
}

// ListFilters narrows the purchases listing.
type ListFilters struct {
	Page       int
	Limit      int
	Status     shared.Status
	SupplierID int64
	From       time.Time
	To         time.Time
}

// LineRequest is one requested purchase line.
type LineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int64           `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreatePurchaseRequest is the payload of POST /api/purchases.
type CreatePurchaseRequest struct {
	SupplierID    int64         `json:"supplier_id" validate:"required,gt=0"`
	PaymentMethod string        `json:"payment_method" validate:"max=40"`
	Status        shared.Status `json:"status" validate:"omitempty,oneof=Pending Completed"`
	Observations  string        `json:"observations" validate:"max=500"`
	Lines         []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// UpdatePurchaseRequest edits a purchase. Nil fields are left unchanged; a
// non-nil Lines replaces every line and is only accepted while Pending.
type UpdatePurchaseRequest struct {
	SupplierID    *int64         `json:"supplier_id" validate:"omitempty,gt=0"`
	PaymentMethod *string        `json:"payment_method" validate:"omitempty,max=40"`
	Status        *shared.Status `json:"status" validate:"omitempty,oneof=Pending Completed"`
	Observations  *string        `json:"observations" validate:"omitempty,max=500"`
	Lines         []LineRequest  `json:"lines" validate:"omitempty,min=1,dive"`
}

// StatusRequest is the payload of PATCH /api/purchases/{id}/status.
type StatusRequest struct {
	Status shared.Status `json:"status" validate:"required,oneof=Pending Completed"`
}

var (
	ErrPurchaseNotFound  = fmt.Errorf("purchase %w", shared.ErrNotFound)
	ErrSupplierNotFound  = fmt.Errorf("supplier %w", shared.ErrNotFound)
	ErrSupplierInactive  = fmt.Errorf("%w: supplier is inactive", shared.ErrInvalidState)
	ErrPurchaseCompleted = fmt.Errorf("%w: lines of a completed purchase cannot change", shared.ErrInvalidState)
)

func priced(lines []Line) []lineitem.Line {
	out := make([]lineitem.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}

package sales

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papeleria/papeleria/internal/lineitem"
	"github.com/papeleria/papeleria/internal/shared"
)

// DefaultPaymentMethod applies when a sale omits the payment method.
const DefaultPaymentMethod = "Cash"

// Sale is a point-of-sale ticket. Total always equals the sum of line
// subtotals.
type Sale struct {
	ID            int64           `json:"id"`
	CustomerName  string          `json:"customer_name"`
	PaymentMethod string          `json:"payment_method"`
	Status        shared.Status   `json:"status"`
	Total         decimal.Decimal `json:"total"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Lines         []Line          `json:"lines"`
}

// Line is one sold product. UnitPrice is the product price at sale time.
type Line struct {
	ID     int64 `json:"id"`
	SaleID int64 `json:"sale_id"`
	LineNo int   `json:"line_no"`
	lineitem.Line
	ProductName string `json:"product_name,omitempty"`
}

// ListFilters narrows the sales listing.
type ListFilters struct {
	Page     int
	Limit    int
	Status   shared.Status
	Customer string
	From     time.Time
	To       time.Time
}

// LineRequest asks for quantity units of a product. A client supplied
// unit_price is accepted for compatibility and ignored.
type LineRequest struct {
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  int64            `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// CreateSaleRequest is the payload of POST /api/sales.
type CreateSaleRequest struct {
	CustomerName  string        `json:"customer_name" validate:"required,max=150"`
	PaymentMethod string        `json:"payment_method" validate:"max=40"`
	Status        shared.Status `json:"status" validate:"omitempty,oneof=Pending Completed"`
	Lines         []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// UpdateSaleRequest edits header fields. Nil fields are left unchanged.
type UpdateSaleRequest struct {
	CustomerName  *string        `json:"customer_name" validate:"omitempty,max=150"`
	PaymentMethod *string        `json:"payment_method" validate:"omitempty,max=40"`
	Status        *shared.Status `json:"status" validate:"omitempty,oneof=Pending Completed"`
}

// StatusRequest is the payload of PATCH /api/sales/{id}/status.
type StatusRequest struct {
	Status shared.Status `json:"status" validate:"required,oneof=Pending Completed"`
}

var (
	ErrSaleNotFound  = fmt.Errorf("sale %w", shared.ErrNotFound)
	ErrSaleCompleted = fmt.Errorf("%w: sale is completed", shared.ErrInvalidState)
)

func priced(lines []Line) []lineitem.Line {
	out := make([]lineitem.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}

package inventory

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papeleria/papeleria/internal/shared"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementOpening records the initial stock of a new product.
	MovementOpening MovementType = "OPENING"
	// MovementSale records a sale decrement.
	MovementSale MovementType = "SALE"
	// MovementSaleReversal restores stock when a sale is deleted.
	MovementSaleReversal MovementType = "SALE_REVERSAL"
	// MovementPurchase records a completed purchase increment.
	MovementPurchase MovementType = "PURCHASE"
	// MovementPurchaseReversal removes stock when a completed purchase is deleted.
	MovementPurchaseReversal MovementType = "PURCHASE_REVERSAL"
	// MovementAdjust indicates manual adjustments.
	MovementAdjust MovementType = "ADJUST"
)

// StockItem is the locked view of a product the ledger works with.
type StockItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int64           `json:"stock"`
	MinStock  int64           `json:"min_stock"`
	Category  string          `json:"category"`
	Active    bool            `json:"active"`
}

// Low reports whether stock has reached the minimum threshold.
func (s StockItem) Low() bool {
	return s.Stock <= s.MinStock
}

// Movement describes a stock card entry.
type Movement struct {
	ID           int64        `json:"id"`
	ProductID    int64        `json:"product_id"`
	Type         MovementType `json:"type"`
	Qty          int64        `json:"qty"`
	BalanceAfter int64        `json:"balance_after"`
	RefModule    string       `json:"ref_module,omitempty"`
	RefID        string       `json:"ref_id,omitempty"`
	Note         string       `json:"note,omitempty"`
	PostedAt     time.Time    `json:"posted_at"`
}

// Adjustment is a signed stock change applied by the ledger.
type Adjustment struct {
	ProductID int64
	Delta     int64
	Type      MovementType
	RefModule string
	RefID     string
	Note      string
}

// MovementFilter filters card entries.
type MovementFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// AdjustRequest is the body of a manual adjustment.
type AdjustRequest struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Delta     int64  `json:"delta" validate:"required"`
	Note      string `json:"note" validate:"max=255"`
}

// SetStockRequest sets an absolute stock level.
type SetStockRequest struct {
	Stock *int64 `json:"stock" validate:"required,gte=0"`
	Note  string `json:"note" validate:"max=255"`
}

var (
	// ErrProductNotFound is returned when the product row is missing.
	ErrProductNotFound = fmt.Errorf("product %w", shared.ErrNotFound)
	// ErrInvalidQuantity indicates a zero delta.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be non zero", shared.ErrInvalidInput)
	// ErrProductInactive is returned when a soft-deleted product is used in a
	// new sale or purchase.
	ErrProductInactive = fmt.Errorf("%w: product is inactive", shared.ErrInvalidState)
)

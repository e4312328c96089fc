// Package lineitem prices order lines.
package lineitem

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/papeleria/papeleria/internal/shared"
)

var (
	// ErrInvalidQuantity indicates a line quantity <= 0.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be greater than zero", shared.ErrInvalidInput)
	// ErrInvalidPrice indicates a unit price <= 0.
	ErrInvalidPrice = fmt.Errorf("%w: unit price must be greater than zero", shared.ErrInvalidInput)
)

// Input is one requested line.
type Input struct {
	ProductID int64
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Line is a priced line.
type Line struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Result holds priced lines in input order and their total.
type Result struct {
	Lines []Line
	Total decimal.Decimal
}

// Calculate prices every line. It fails on the first invalid line, reporting
// its position.
func Calculate(inputs []Input) (Result, error) {
	res := Result{Lines: make([]Line, 0, len(inputs)), Total: decimal.Zero}
	for i, in := range inputs {
		line, err := Price(in)
		if err != nil {
			return Result{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		res.Lines = append(res.Lines, line)
		res.Total = res.Total.Add(line.Subtotal)
	}
	return res, nil
}

// Price computes subtotal = quantity x unit price for a single line.
func Price(in Input) (Line, error) {
	if in.Quantity <= 0 {
		return Line{}, ErrInvalidQuantity
	}
	if !in.UnitPrice.IsPositive() {
		return Line{}, ErrInvalidPrice
	}
	return Line{
		ProductID: in.ProductID,
		Quantity:  in.Quantity,
		UnitPrice: in.UnitPrice,
		Subtotal:  in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity)),
	}, nil
}

// Total re-sums stored lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal)
	}
	return total
}

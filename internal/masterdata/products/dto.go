package products

import "github.com/shopspring/decimal"

// DefaultMinStock applies when a product is created without a minimum.
const DefaultMinStock = 5

type CreateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=150"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price"`
	Stock       *int64          `json:"stock" validate:"omitempty,gte=0"`
	MinStock    *int64          `json:"min_stock" validate:"omitempty,gte=0"`
	Category    string          `json:"category" validate:"max=80"`
	Barcode     *string         `json:"barcode" validate:"omitempty,max=64"`
	SupplierID  *int64          `json:"supplier_id" validate:"omitempty,gt=0"`
	Active      *bool           `json:"active"`
}

// UpdateProductRequest carries editable fields. Stock is accepted only to
// reject it: stock changes go through the inventory endpoints.
type UpdateProductRequest struct {
	Name        string          `json:"name" validate:"required,max=150"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price"`
	Stock       *int64          `json:"stock"`
	MinStock    *int64          `json:"min_stock" validate:"omitempty,gte=0"`
	Category    string          `json:"category" validate:"max=80"`
	Barcode     *string         `json:"barcode" validate:"omitempty,max=64"`
	SupplierID  *int64          `json:"supplier_id" validate:"omitempty,gt=0"`
	Active      *bool           `json:"active"`
}

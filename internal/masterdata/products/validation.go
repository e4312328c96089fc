package products

import (
	"github.com/papeleria/papeleria/internal/shared"
)

func normalizeCreate(req CreateProductRequest) (Product, int64, error) {
	req.Name = shared.CleanString(req.Name)
	req.Description = shared.CleanString(req.Description)
	req.Category = shared.CleanString(req.Category)
	req.Barcode = shared.CleanOptional(req.Barcode)

	var errs shared.ValidationErrors
	if err := shared.ValidateStruct(req); err != nil {
		errs = append(errs, shared.FieldErrors(err)...)
	}
	if !req.Price.IsPositive() {
		errs.Add("price", "must be greater than 0")
	}
	if err := errs.Err(); err != nil {
		return Product{}, 0, err
	}

	p := Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		MinStock:    DefaultMinStock,
		Category:    req.Category,
		Barcode:     req.Barcode,
		SupplierID:  req.SupplierID,
		Active:      true,
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	var opening int64
	if req.Stock != nil {
		opening = *req.Stock
	}
	return p, opening, nil
}

func normalizeUpdate(req UpdateProductRequest) (Product, error) {
	req.Name = shared.CleanString(req.Name)
	req.Description = shared.CleanString(req.Description)
	req.Category = shared.CleanString(req.Category)
	req.Barcode = shared.CleanOptional(req.Barcode)

	var errs shared.ValidationErrors
	if err := shared.ValidateStruct(req); err != nil {
		errs = append(errs, shared.FieldErrors(err)...)
	}
	if !req.Price.IsPositive() {
		errs.Add("price", "must be greater than 0")
	}
	if req.Stock != nil {
		errs.Add("stock", "cannot be edited here; use PATCH /api/products/{id}/stock")
	}
	if err := errs.Err(); err != nil {
		return Product{}, err
	}

	p := Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		MinStock:    DefaultMinStock,
		Category:    req.Category,
		Barcode:     req.Barcode,
		SupplierID:  req.SupplierID,
		Active:      true,
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.Active != nil {
		p.Active = *req.Active
	}
	return p, nil
}

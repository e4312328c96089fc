package procurement

import (
	"fmt"

	"github.com/papeleria/papeleria/internal/lineitem"
	"github.com/papeleria/papeleria/internal/shared"
)

type draft struct {
	SupplierID    int64
	PaymentMethod string
	Status        shared.Status
	Observations  string
	Lines         []lineitem.Input
}

func normalizeCreate(req CreatePurchaseRequest) (draft, error) {
	req.PaymentMethod = shared.DefaultString(shared.CleanString(req.PaymentMethod), DefaultPaymentMethod)
	req.Status = shared.Status(shared.DefaultString(shared.CleanString(string(req.Status)), string(shared.StatusPending)))
	req.Observations = shared.CleanString(req.Observations)

	var errs shared.ValidationErrors
	if err := shared.ValidateStruct(req); err != nil {
		errs = append(errs, shared.FieldErrors(err)...)
	}
	errs = append(errs, priceErrors(req.Lines)...)
	if err := errs.Err(); err != nil {
		return draft{}, err
	}
	return draft{
		SupplierID:    req.SupplierID,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
		Observations:  req.Observations,
		Lines:         inputs(req.Lines),
	}, nil
}

func normalizeUpdate(req UpdatePurchaseRequest) (UpdatePurchaseRequest, error) {
	if req.PaymentMethod != nil {
		method := shared.DefaultString(shared.CleanString(*req.PaymentMethod), DefaultPaymentMethod)
		req.PaymentMethod = &method
	}
	if req.Observations != nil {
		obs := shared.CleanString(*req.Observations)
		req.Observations = &obs
	}
	var errs shared.ValidationErrors
	if err := shared.ValidateStruct(req); err != nil {
		errs = append(errs, shared.FieldErrors(err)...)
	}
	errs = append(errs, priceErrors(req.Lines)...)
	return req, errs.Err()
}

func priceErrors(lines []LineRequest) shared.ValidationErrors {
	var errs shared.ValidationErrors
	for i, l := range lines {
		if !l.UnitPrice.IsPositive() {
			errs.Add(fmt.Sprintf("lines[%d].unit_price", i), "must be greater than 0")
		}
	}
	return errs
}

func inputs(lines []LineRequest) []lineitem.Input {
	out := make([]lineitem.Input, len(lines))
	for i, l := range lines {
		out[i] = lineitem.Input{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return out
}

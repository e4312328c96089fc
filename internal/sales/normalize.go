package sales

import (
	"github.com/papeleria/papeleria/internal/lineitem"
	"github.com/papeleria/papeleria/internal/shared"
)

type draft struct {
	CustomerName  string
	PaymentMethod string
	Status        shared.Status
	Lines         []lineitem.Input
}

// normalizeCreate cleans the payload and applies defaults. It never touches
// storage.
func normalizeCreate(req CreateSaleRequest) (draft, error) {
	req.CustomerName = shared.CleanString(req.CustomerName)
	req.PaymentMethod = shared.DefaultString(shared.CleanString(req.PaymentMethod), DefaultPaymentMethod)
	req.Status = shared.Status(shared.DefaultString(shared.CleanString(string(req.Status)), string(shared.StatusCompleted)))
	if err := shared.ValidateStruct(req); err != nil {
		return draft{}, err
	}
	d := draft{
		CustomerName:  req.CustomerName,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
		Lines:         make([]lineitem.Input, len(req.Lines)),
	}
	for i, l := range req.Lines {
		d.Lines[i] = lineitem.Input{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return d, nil
}

func normalizeLine(req LineRequest) (lineitem.Input, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return lineitem.Input{}, err
	}
	return lineitem.Input{ProductID: req.ProductID, Quantity: req.Quantity}, nil
}

func normalizeUpdate(req UpdateSaleRequest) (UpdateSaleRequest, error) {
	if req.CustomerName != nil {
		name := shared.CleanString(*req.CustomerName)
		if name == "" {
			return req, shared.InvalidField("customer_name", "is required")
		}
		req.CustomerName = &name
	}
	if req.PaymentMethod != nil {
		method := shared.DefaultString(shared.CleanString(*req.PaymentMethod), DefaultPaymentMethod)
		req.PaymentMethod = &method
	}
	if err := shared.ValidateStruct(req); err != nil {
		return req, err
	}
	return req, nil
}

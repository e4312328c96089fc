package suppliers

import (
	"github.com/papeleria/papeleria/internal/shared"
)

// normalize trims the request and checks it, returning the supplier it describes.
func normalize(req SupplierRequest) (Supplier, error) {
	req.Name = shared.CleanString(req.Name)
	req.Email = shared.CleanString(req.Email)
	req.Phone = shared.CleanString(req.Phone)
	req.Address = shared.CleanString(req.Address)
	if err := shared.ValidateStruct(req); err != nil {
		return Supplier{}, err
	}
	sup := Supplier{Name: req.Name, Email: req.Email, Phone: req.Phone, Address: req.Address, Active: true}
	if req.Active != nil {
		sup.Active = *req.Active
	}
	return sup, nil
}

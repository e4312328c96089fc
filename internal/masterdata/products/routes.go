package products

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers product routes. setStock serves PATCH /{id}/stock
// and belongs to the inventory module.
func (h *Handler) MountRoutes(r chi.Router, setStock http.HandlerFunc) {
	r.Get("/", h.List)
	r.Get("/low-stock", h.LowStock)
	r.Get("/categories", h.Categories)
	r.Get("/{id}", h.Show)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	if setStock != nil {
		r.Patch("/{id}/stock", setStock)
	}
}

package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/papeleria/papeleria/internal/platform/httpx"
	"github.com/papeleria/papeleria/internal/shared"
)

// ServicePort is what the handler needs from Service.
type ServicePort interface {
	Adjust(ctx context.Context, req AdjustRequest) (Movement, error)
	SetStock(ctx context.Context, productID int64, req SetStockRequest) (StockItem, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	LowStock(ctx context.Context) ([]StockItem, error)
}

// Handler wires HTTP endpoints for inventory module.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/movements", h.handleMovements)
	r.Get("/low-stock", h.handleLowStock)
	r.Post("/adjustments", h.handleAdjust)
	r.Patch("/products/{id}/stock", h.HandleSetStock)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{}
	filter.ProductID, _ = strconv.ParseInt(q.Get("product_id"), 10, 64)
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	var errs shared.ValidationErrors
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("from", "must be YYYY-MM-DD")
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("to", "must be YYYY-MM-DD")
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if err := errs.Err(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	moves, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.fail(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, moves)
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.LowStock(r.Context())
	if err != nil {
		h.fail(w, "low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mv, err := h.service.Adjust(r.Context(), req)
	if err != nil {
		h.fail(w, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, mv)
}

// HandleSetStock sets an absolute stock value. It is also mounted under the
// products API.
func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SetStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.SetStock(r.Context(), id, req)
	if err != nil {
		h.fail(w, "set stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if shared.KindOf(err) == shared.KindInternal || shared.KindOf(err) == shared.KindTransactionAborted {
		h.logger.Error(action+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

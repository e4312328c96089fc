package sales

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/papeleria/papeleria/internal/platform/httpx"
	"github.com/papeleria/papeleria/internal/shared"
)

// IdempotencyHeader carries an optional client key that makes POST /api/sales
// safe to retry.
const IdempotencyHeader = "Idempotency-Key"

// ServicePort is what the handler needs from Service.
type ServicePort interface {
	Create(ctx context.Context, req CreateSaleRequest, idempotencyKey string) (Sale, error)
	AddLine(ctx context.Context, saleID int64, req LineRequest) (Sale, error)
	UpdateStatus(ctx context.Context, id int64, req StatusRequest) (Sale, error)
	Update(ctx context.Context, id int64, req UpdateSaleRequest) (Sale, error)
	Delete(ctx context.Context, id int64) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filters ListFilters) ([]Sale, int, error)
}

// Handler manages sales endpoints.
type Handler struct {
	logger  *slog.Logger
	service ServicePort
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service ServicePort) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Patch("/{id}/status", h.updateStatus)
	r.Get("/{id}/lines", h.lines)
	r.Post("/{id}/lines", h.addLine)
}

type listResponse struct {
	Items      []Sale            `json:"items"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := ListFilters{
		Status:   shared.Status(strings.TrimSpace(q.Get("status"))),
		Customer: shared.CleanString(q.Get("customer")),
	}
	filters.Page, filters.Limit = shared.PageParams(q, 50)
	var errs shared.ValidationErrors
	if v := q.Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("from", "must be YYYY-MM-DD")
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			errs.Add("to", "must be YYYY-MM-DD")
		}
		filters.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if err := errs.Err(); err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Items: items, Pagination: shared.NewPagination(filters.Page, filters.Limit, total)})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) lines(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get sale lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale.Lines)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Create(r.Context(), req, strings.TrimSpace(r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.fail(w, "create sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req LineRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.AddLine(r.Context(), id, req)
	if err != nil {
		h.fail(w, "add sale line", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpdateSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	sale, err := h.service.UpdateStatus(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update sale status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	switch shared.KindOf(err) {
	case shared.KindInternal:
		h.logger.Error(action+" failed", slog.Any("error", err))
	case shared.KindInsufficientStock, shared.KindBusy:
		h.logger.Warn(action+" rejected", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

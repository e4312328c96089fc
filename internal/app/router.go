package app

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/masterdata/products"
	"github.com/papeleria/papeleria/internal/masterdata/suppliers"
	"github.com/papeleria/papeleria/internal/observability"
	"github.com/papeleria/papeleria/internal/platform/httpx"
	"github.com/papeleria/papeleria/internal/procurement"
	"github.com/papeleria/papeleria/internal/sales"
	"github.com/papeleria/papeleria/jobs"
)

// Pinger is satisfied by database pools and cache clients checked by /api/health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ProductsHandler    *products.Handler
	SuppliersHandler   *suppliers.Handler
	InventoryHandler   *inventory.Handler
	SalesHandler       *sales.Handler
	ProcurementHandler *procurement.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	Database           Pinger
	Redis              Pinger
	Frontend           fs.FS
}

// NewRouter constructs the chi.Router with API defaults.
func NewRouter(params RouterParams) http.Handler {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler(logger, params.Database, params.Redis))
		if params.ProductsHandler != nil {
			var setStock http.HandlerFunc
			if params.InventoryHandler != nil {
				setStock = params.InventoryHandler.HandleSetStock
			}
			r.Route("/products", func(r chi.Router) {
				params.ProductsHandler.MountRoutes(r, setStock)
			})
		}
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ProcurementHandler != nil {
			r.Route("/purchases", params.ProcurementHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "no API route for "+r.URL.Path)
		})
	})

	if params.Frontend != nil {
		r.Handle("/*", spaHandler(params.Frontend))
	}

	return r
}

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Checked  time.Time         `json:"checked_at"`
	Duration string            `json:"duration"`
}

// healthHandler pings each dependency. Redis is optional: a failing cache
// degrades the report but a failing database makes it unhealthy.
func healthHandler(logger *slog.Logger, database, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Checks: map[string]string{}, Checked: start.UTC()}
		status := http.StatusOK
		if database == nil {
			resp.Checks["database"] = "not configured"
		} else if err := database.Ping(ctx); err != nil {
			logger.Warn("health: database ping", slog.Any("error", err))
			resp.Checks["database"] = "down"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["database"] = "up"
		}
		if redis == nil {
			resp.Checks["redis"] = "not configured"
		} else if err := redis.Ping(ctx); err != nil {
			logger.Warn("health: redis ping", slog.Any("error", err))
			resp.Checks["redis"] = "down"
			if resp.Status == "ok" {
				resp.Status = "degraded"
			}
		} else {
			resp.Checks["redis"] = "up"
		}
		resp.Duration = time.Since(start).String()
		httpx.JSON(w, status, resp)
	}
}

// spaHandler serves built frontend assets and falls back to index.html for
// client-side routes.
func spaHandler(frontend fs.FS) http.Handler {
	files := http.FileServer(http.FS(frontend))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}
		info, err := fs.Stat(frontend, name)
		if err == nil && !info.IsDir() {
			if strings.HasPrefix(name, "assets/") {
				w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
			}
			files.ServeHTTP(w, r)
			return
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if path.Ext(name) != "" && name != "index.html" {
			http.NotFound(w, r)
			return
		}
		index, err := fs.ReadFile(frontend, "index.html")
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(index)
	})
}

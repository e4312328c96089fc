package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/papeleria/papeleria/cmd/papeleria/cli"
	"github.com/papeleria/papeleria/internal/app"
	"github.com/papeleria/papeleria/internal/coordinator"
	"github.com/papeleria/papeleria/internal/inventory"
	"github.com/papeleria/papeleria/internal/masterdata/products"
	"github.com/papeleria/papeleria/internal/masterdata/suppliers"
	"github.com/papeleria/papeleria/internal/observability"
	"github.com/papeleria/papeleria/internal/platform/cache"
	"github.com/papeleria/papeleria/internal/platform/db"
	"github.com/papeleria/papeleria/internal/procurement"
	"github.com/papeleria/papeleria/internal/sales"
	"github.com/papeleria/papeleria/internal/shared"
	"github.com/papeleria/papeleria/jobs"
	"github.com/papeleria/papeleria/migrations"
	"github.com/papeleria/papeleria/web"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(redisOpts, cfg.IdempotencyRetention)
		defer jobsCLI.Close()
		if err := jobsCLI.Run(ctx, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, dbpool, migrations.Files); err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		// Sales keep working without redis; the catalog cache and alerts degrade.
		logger.Warn("redis unavailable", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	catalog := cache.NewCatalog(redisClient, "papeleria:catalog", cfg.CatalogCacheTTL).WithLogger(logger)

	coordCfg := coordinator.Config{Observer: metrics, Logger: logger}
	if cfg.StockLocksEnabled {
		coordCfg.Locker = coordinator.NewRedisLocker(redisClient, cfg.StockLockTTL)
	}
	if cfg.AuditEnabled {
		coordCfg.Audit = shared.NewAuditLogger(dbpool)
	}
	coord := coordinator.New(coordCfg)
	coord.OnCommit(coordinator.InvalidateOnStockChange(catalog, logger))

	ledger := inventory.NewLedger()

	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, ledger, coord)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	productService := products.NewService(products.NewRepository(dbpool), ledger, coord, catalog, logger)
	productHandler := products.NewHandler(logger, productService)

	supplierService := suppliers.NewService(suppliers.NewRepository(dbpool))
	supplierHandler := suppliers.NewHandler(logger, supplierService)

	salesService := sales.NewService(sales.NewRepository(dbpool), ledger, coord, jobClient, logger)
	salesHandler := sales.NewHandler(logger, salesService)

	procurementService := procurement.NewService(procurement.NewRepository(dbpool), ledger, coord, logger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	jobHandler := jobs.NewHandler(inspector, logger)

	frontend, err := fs.Sub(web.Dist, "dist")
	if err != nil {
		logger.Error("load frontend", slog.Any("error", err))
		os.Exit(1)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductsHandler:    productHandler,
		SuppliersHandler:   supplierHandler,
		InventoryHandler:   inventoryHandler,
		SalesHandler:       salesHandler,
		ProcurementHandler: procurementHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
		Database:           dbpool,
		Redis:              app.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
		Frontend:           frontend,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

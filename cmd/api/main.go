package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/practice-hub/cmd/mainconfig"
	"github.com/wolfman30/practice-hub/internal/api/router"
	"github.com/wolfman30/practice-hub/internal/app/bootstrap"
	"github.com/wolfman30/practice-hub/internal/clock"
	"github.com/wolfman30/practice-hub/internal/compliance"
	appconfig "github.com/wolfman30/practice-hub/internal/config"
	"github.com/wolfman30/practice-hub/internal/coordinator"
	"github.com/wolfman30/practice-hub/internal/ghl"
	"github.com/wolfman30/practice-hub/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/practice-hub/internal/http/middleware"
	"github.com/wolfman30/practice-hub/internal/lifecycle"
	"github.com/wolfman30/practice-hub/internal/notes"
	"github.com/wolfman30/practice-hub/internal/observability/metrics"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting practice-hub API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"draft_store", cfg.DraftStore,
	)

	ctx := context.Background()
	app, err := buildApplication(ctx, cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: draft editing WebSockets are long lived.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Flush open draft sessions before connections are torn down.
	app.hooks.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

type application struct {
	handler http.Handler
	hooks   *lifecycle.Hooks
	closers []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setupMetrics registers process collectors plus the coordinator and draft
// metrics on reg and returns the /metrics handler.
func setupMetrics(reg *prometheus.Registry) (http.Handler, *metrics.CoordinatorMetrics, *metrics.DraftMetrics) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return handler, metrics.NewCoordinatorMetrics(reg), metrics.NewDraftMetrics(reg)
}

func buildApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg *prometheus.Registry) (*application, error) {
	app := &application{hooks: lifecycle.NewHooks(logger)}
	metricsHandler, coordMetrics, draftMetrics := setupMetrics(reg)

	backends := bootstrap.Backends{}
	if cfg.DraftStore == bootstrap.StoreRedis {
		backends.Redis = bootstrap.BuildRedisClient(ctx, cfg, logger, true)
		if backends.Redis != nil {
			client := backends.Redis
			app.closers = append(app.closers, func() { _ = client.Close() })
		}
	}

	db, err := bootstrap.BuildDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if db != nil {
		backends.Database = db
		app.closers = append(app.closers, db.Close)
	}

	if cfg.DraftStore == bootstrap.StoreDynamo || cfg.DraftStore == bootstrap.StoreS3 {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		backends.Dynamo = mainconfig.NewDynamoClient(awsCfg)
		backends.S3 = mainconfig.NewS3Client(awsCfg, cfg)
	}

	store, err := bootstrap.BuildDraftStore(cfg, backends, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	var noteRepo notes.Repository = notes.NewInMemoryRepository()
	var audit *compliance.AuditService
	if db != nil {
		noteRepo = notes.NewSQLRepository(db.SQL)
		audit = compliance.NewAuditService(db.SQL)
	}

	coord := coordinator.New(coordinator.Config{
		MinInterval: cfg.RequestMinInterval,
		Logger:      logger,
		Metrics:     coordMetrics,
	})
	ghlClient := ghl.New(ghl.Config{
		BaseURL:    cfg.GHLBaseURL,
		APIKey:     cfg.GHLAPIKey,
		LocationID: cfg.GHLLocationID,
		Version:    cfg.GHLAPIVersion,
		Timeout:    cfg.GHLTimeout,
		Logger:     logger,
	})
	if !ghlClient.Configured() {
		logger.Warn("gohighlevel credentials missing; /api/ghl will return 503")
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, clock.Real())
	}

	app.handler = router.New(&router.Config{
		Logger: logger,
		Health: handlers.NewHealthHandler(bootstrap.BuildHealthChecks(backends)),
		Drafts: handlers.NewDraftHandler(handlers.DraftHandlerConfig{
			Store:    store,
			Notes:    noteRepo,
			Audit:    audit,
			Teardown: app.hooks,
			Interval: cfg.DraftAutosaveInterval,
			Debounce: cfg.DraftDebounce,
			Logger:   logger,
			Metrics:  draftMetrics,
		}),
		GHL:                handlers.NewGHLHandler(ghl.NewService(ghlClient, coord, logger), logger),
		Notes:              handlers.NewNoteHandler(noteRepo, audit, logger),
		MetricsHandler:     metricsHandler,
		StaffAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        limiter,
	})
	return app, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/EmpoweredVote/cii-backend/internal/app"
	"github.com/EmpoweredVote/cii-backend/internal/config"
	"github.com/EmpoweredVote/cii-backend/internal/db"
	"github.com/EmpoweredVote/cii-backend/internal/middleware"
	"github.com/EmpoweredVote/cii-backend/internal/observability"
	"github.com/EmpoweredVote/cii-backend/internal/pipeline"
	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	conn, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := app.Migrate(conn); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	a, err := app.New(app.Options{Config: cfg, DB: conn, Clock: clock, Log: logger, Metrics: metrics})
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	r.Get("/", RootHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/regions", regions.SetupRoutes(regions.NewHandler(a.Regions, logger)))
	r.Route("/pipeline", func(r chi.Router) {
		r.Use(middleware.TokenMiddleware(cfg.PipelineToken))
		r.Mount("/", pipeline.SetupRoutes(pipeline.NewHandler(a.Loader, a.Enricher, a.Recomputer, a.Progress, logger)))
	})

	srv := &http.Server{Addr: "0.0.0.0:" + cfg.Port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	go pipeline.NewScheduler(a.Recomputer, cfg.SeedYears, cfg.RecomputeInterval, clock, logger).Run(ctx)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := a.Close(); err != nil {
		logger.Error("cache close error", "error", err)
	}
	if sqlDB, err := conn.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("shutdown complete")
}

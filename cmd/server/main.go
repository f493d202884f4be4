package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

	"refuge/internal/adapters/config"
	"refuge/internal/adapters/errors/noop"
	"refuge/internal/adapters/errors/sentry"
	"refuge/internal/api"
	"refuge/internal/api/health"
	"refuge/internal/api/predict"
	"refuge/internal/domain/prediction"
	"refuge/internal/metrics"
	"refuge/internal/predictor"
	"refuge/internal/repository/sqlite"
	"refuge/pkg/errors"
	"refuge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	metrics.Init()

	// A failed artifact load leaves the service running in degraded mode:
	// health reports it and /predict answers 503 until restart.
	registry := predictor.Default()
	if err := registry.Load(cfg.Model.Dir); err != nil {
		log.Warnf("Failed to load models: %v", err)
		log.Warn("API will return errors until models are loaded.")
	}

	auditRepo, auditDB := initAudit(cfg, log)

	svc := predictor.NewService(registry, log)
	healthHandler := health.New(registry, cfg.App.Name, cfg.App.Version)
	predictHandler := predict.New(svc, registry, auditRepo, log)

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.Server.Port,
		ServiceName:    cfg.App.Name,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.CORSOrigins,
	}, healthHandler, predictHandler, log)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Errorf("HTTP server error: %v", err)
		}
	case sig := <-quit:
		log.Infof("Received signal %s, shutting down...", sig)
	}

	shutdown(cfg, server, auditDB, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// initAudit opens the optional prediction audit log
func initAudit(cfg *config.Config, log *logger.Logger) (prediction.Repository, *sqlx.DB) {
	if cfg.Audit.DBPath == "" {
		log.Info("Prediction audit log disabled")
		return nil, nil
	}

	db, err := sqlite.Open(cfg.Audit.DBPath)
	if err != nil {
		log.Warnf("Failed to open audit database, audit log disabled: %v", err)
		return nil, nil
	}

	metrics.RegisterAuditCollector(log, db)

	log.Infof("Prediction audit log enabled at %s", cfg.Audit.DBPath)
	return sqlite.NewPredictionRepository(db), db
}

// shutdown performs coordinated cleanup: HTTP server first, then the audit
// database, then flush the error tracker and logs.
func shutdown(cfg *config.Config, server *api.Server, auditDB *sqlx.DB, errorTracker errors.Tracker, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Errorf("HTTP server shutdown failed: %v", err)
	}

	if auditDB != nil {
		if err := auditDB.Close(); err != nil {
			log.Errorf("Audit database close failed: %v", err)
		}
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(ctx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}

package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/menatics/andromeda/pkg/api"
	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/extsource"
	"github.com/menatics/andromeda/pkg/monitor"
	"github.com/menatics/andromeda/pkg/notify"
	"github.com/menatics/andromeda/pkg/observability"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConns)
	db.SetMaxIdleConns(cfg.Database.MinConns)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.Database.Timeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	repo := clients.NewPostgresRepository(db, logger)
	counter := extsource.NewCounter(cfg.Monitor.PollConnectTimeout, logger, metrics)
	mailer := notify.NewSMTPMailer(cfg.Mail, logger, metrics)
	syncer := monitor.NewSyncService(repo, counter, mailer, cfg.Monitor, logger)

	server := api.NewServer(cfg.Server, repo, syncer, logger, metrics, registry)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			logger.WithError(err).Error("api server failed")
			os.Exit(1)
		}
	case sig := <-sigChan:
		logger.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Error("shutdown failed")
			os.Exit(1)
		}
	}

	logger.Info("api server stopped")
}

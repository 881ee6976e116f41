package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/menatics/andromeda/pkg/clients"
	"github.com/menatics/andromeda/pkg/config"
	"github.com/menatics/andromeda/pkg/extsource"
	"github.com/menatics/andromeda/pkg/monitor"
	"github.com/menatics/andromeda/pkg/notify"
	"github.com/menatics/andromeda/pkg/observability"
	"github.com/menatics/andromeda/pkg/runlock"
)

var (
	runOnce = flag.Bool("run-once", false, "Run the monitoring pass once and exit")
	migrate = flag.Bool("migrate", false, "Apply database migrations and exit")
)

func main() {
	flag.Parse()

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

	if *migrate {
		if err := clients.RunMigrations(context.Background(), db); err != nil {
			logger.WithError(err).Error("migrations failed")
			os.Exit(1)
		}
		logger.Info("migrations applied")
		return
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	repo := clients.NewPostgresRepository(db, logger)
	counter := extsource.NewCounter(cfg.Monitor.PollConnectTimeout, logger, metrics)
	mailer := notify.NewSMTPMailer(cfg.Mail, logger, metrics)
	lock := runlock.NewLock(redisClient, cfg.Monitor.LockTTL, logger)

	var alertMemory monitor.AlertMemory
	if !cfg.Monitor.AlertRepeatDaily {
		alertMemory = runlock.NewAlertMarker(redisClient, 20*time.Hour, logger)
	}

	runner := monitor.NewRunner(repo, counter, mailer, lock, alertMemory, cfg.Monitor, logger, metrics)

	if *runOnce {
		summary, err := runner.Run(context.Background())
		if err != nil {
			logger.WithError(err).Error("monitoring run failed")
			os.Exit(1)
		}
		logger.WithFields(map[string]interface{}{
			"outcome":   summary.Outcome,
			"processed": summary.Processed,
			"errors":    len(summary.Errors),
		}).Info("monitoring run done")
		return
	}

	c := cron.New()
	_, err = c.AddFunc(cfg.Monitor.Schedule, func() {
		if _, err := runner.Run(context.Background()); err != nil {
			logger.WithError(err).Error("scheduled monitoring run failed")
		}
	})
	if err != nil {
		logger.WithError(err).WithField("schedule", cfg.Monitor.Schedule).Error("failed to schedule monitoring run")
		os.Exit(1)
	}

	c.Start()
	logger.WithField("schedule", cfg.Monitor.Schedule).Info("andromeda monitor started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	<-c.Stop().Done()
	logger.Info("monitor stopped")
}

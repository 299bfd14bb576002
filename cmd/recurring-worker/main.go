package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"mymoney/internal/config"
	applog "mymoney/internal/log"
	"mymoney/internal/services"
	"mymoney/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting recurring-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	recurring := services.NewRecurringService(repo)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	materialize := func() {
		count, err := recurring.MaterializeDue(ctx, time.Now())
		if err != nil {
			logger.Error("Materialization failed", "error", err)
			return
		}
		if count > 0 {
			logger.Info("Materialized due recurring transactions", "created", count)
		}
	}

	// Catch up immediately: templates may be overdue after downtime.
	materialize()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RecurringSchedule, materialize); err != nil {
		logger.Error("Invalid recurring schedule", "error", err, "schedule", cfg.RecurringSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Scheduler started", "schedule", cfg.RecurringSchedule, "db", cfg.SQLiteDBPath)

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Let an in-flight materialization finish before exiting.
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn("Shutdown timeout reached")
	}
	logger.Info("Recurring-worker shutdown complete")
}

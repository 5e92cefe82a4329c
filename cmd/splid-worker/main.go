package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"splid/internal/amqp"
	"splid/internal/config"
	"splid/internal/log"
	gsheet "splid/internal/sheets/google"
	"splid/internal/storage"
	"splid/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting splid-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(cfg *config.Config, logger *log.Logger) error {
	// The worker reads what the server wrote, so both must share a database.
	if cfg.DataBackend != "sqlite" {
		return fmt.Errorf("splid-worker needs DATA_BACKEND=sqlite, got %q", cfg.DataBackend)
	}
	if !cfg.ExportEnabled() {
		return errors.New("splid-worker needs GOOGLE_SPREADSHEET_ID")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("init SQLite repository at %s: %w", cfg.SQLiteDBPath, err)
	}
	defer repo.Close()

	exporter, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsFile: cfg.GoogleCredentialsFile,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		OAuthClientFile: cfg.GoogleOAuthClientFile,
		OAuthClientJSON: cfg.GoogleOAuthClientJSON,
		OAuthTokenFile:  cfg.GoogleOAuthTokenFile,
	})
	if err != nil {
		return fmt.Errorf("init Google Sheets exporter: %w", err)
	}
	logger.Info("Google Sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	w := worker.NewSyncWorker(repo, repo, repo, exporter, cfg.SyncBatchSize)

	// Pick up entries saved while the worker was down.
	if err := w.StartupSyncCheck(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("init AMQP client: %w", err)
		}
		defer client.Close()
		g.Go(func() error {
			return client.ConsumeEntrySync(gctx, w.HandleSyncMessage)
		})
	} else {
		logger.Info("AMQP disabled, relying on periodic scans only")
	}

	g.Go(func() error {
		return w.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

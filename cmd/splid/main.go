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
	"golang.org/x/sync/errgroup"

	"splid/internal/backend"
	"splid/internal/cache"
	"splid/internal/config"
	apphttp "splid/internal/http"
	"splid/internal/log"
	"splid/internal/services"
	gsheet "splid/internal/sheets/google"
	"splid/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), Component: log.ComponentApp})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	result, err := backend.NewFactory(logger.Logger.With(log.FieldComponent, log.ComponentBackend)).CreateBackend(ctx, backendConfig)
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, services.NewEditService(result.Backend), apphttp.Options{
		Ready:              result.Ready,
		DraftTTL:           cfg.DraftTTL,
		DraftCacheSize:     cfg.DraftCacheSize,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})

	caches := cache.NewManager(logger.Logger.With(log.FieldComponent, log.ComponentCache))
	caches.Register(srv.DraftCache())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		caches.Run(gctx, time.Minute)
		return nil
	})

	// Without a broker nobody consumes sync messages, so export runs here.
	if cfg.ExportEnabled() && cfg.AMQPURL == "" {
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
		w := worker.NewSyncWorker(result.Backend, result.Backend, result.Tracker, exporter, cfg.SyncBatchSize)
		g.Go(func() error {
			if err := w.StartupSyncCheck(gctx); err != nil {
				logger.Error("Startup sync check failed", log.FieldError, err)
			}
			if err := w.Run(gctx, cfg.SyncInterval); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		logger.Info("In-process export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID, "interval", cfg.SyncInterval)
	}

	g.Go(func() error {
		logger.Info("Starting splid server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Port, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

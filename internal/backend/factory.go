package backend

import (
	"context"
	"fmt"
	"log/slog"

	"splid/internal/adapters"
	"splid/internal/amqp"
	"splid/internal/entry"
	"splid/internal/ports/memory"
	"splid/internal/services"
	"splid/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if err := seedSQLite(ctx, repo, config.SeedDir); err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed SQLite repository: %w", err)
	}

	// AMQP is optional; without it the worker's periodic scan exports entries.
	var publisher services.SyncPublisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync messages", "error", err)
		} else {
			publisher = client
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	entryService := services.NewEntryService(repo, publisher)
	adapter := adapters.NewSQLiteAdapter(repo, entryService)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Backend: adapter,
		Tracker: repo,
		Cleanup: adapter.Close,
		Ready:   repo.Ping,
	}, nil
}

// seedSQLite loads the seed into an empty database.
func seedSQLite(ctx context.Context, repo *storage.SQLiteRepository, seedDir string) error {
	n, err := repo.GroupCount(ctx)
	if err != nil || n > 0 {
		return err
	}
	seed, err := memory.ReadSeed(seedDir)
	if err != nil {
		return err
	}
	for _, gs := range seed.Groups {
		group, members, err := gs.Group()
		if err != nil {
			return err
		}
		if err := repo.UpsertGroup(ctx, group, members, gs.Rates); err != nil {
			return err
		}
		for _, raw := range gs.Entries {
			rec, err := entry.ParseRecord(raw)
			if err != nil {
				return fmt.Errorf("seed entry in %q: %w", group.ID, err)
			}
			if _, err := repo.SaveEntry(ctx, group.ID, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromDir(config.SeedDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_dir", config.SeedDir)

	return &BackendResult{
		Backend: store,
		Tracker: store,
		Ready:   func(context.Context) error { return nil },
	}, nil
}

package adapters

import (
	"context"

	"splid/internal/entry"
	"splid/internal/services"
	"splid/internal/storage"
)

// SQLiteAdapter serves reads from SQLiteRepository and routes writes through
// EntryService so every save is announced to the sync worker.
type SQLiteAdapter struct {
	*storage.SQLiteRepository
	service *services.EntryService
}

func NewSQLiteAdapter(storage *storage.SQLiteRepository, service *services.EntryService) *SQLiteAdapter {
	return &SQLiteAdapter{
		SQLiteRepository: storage,
		service:          service,
	}
}

// SaveEntry implements ports.EntryWriter
func (a *SQLiteAdapter) SaveEntry(ctx context.Context, groupID string, r *entry.Record) (int64, error) {
	return a.service.SaveEntry(ctx, groupID, r)
}

// Close releases the service, which closes the repository.
func (a *SQLiteAdapter) Close() error {
	return a.service.Close()
}

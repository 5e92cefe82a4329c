package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"splid/internal/entry"
	"splid/internal/ports"
)

// SyncPublisher announces saved entry versions to the export worker.
// *amqp.Client satisfies it.
type SyncPublisher interface {
	PublishEntrySync(ctx context.Context, entryID, groupID string, version int64) error
	Close() error
}

// EntryService persists entries and publishes a sync message for every saved
// version. A failed publish never fails the save: the worker's periodic scan
// picks the entry up from the pending list.
type EntryService struct {
	writer    ports.EntryWriter
	publisher SyncPublisher
}

// NewEntryService wires a writer and an optional publisher.
func NewEntryService(writer ports.EntryWriter, publisher SyncPublisher) *EntryService {
	return &EntryService{
		writer:    writer,
		publisher: publisher,
	}
}

// SaveEntry implements ports.EntryWriter
func (s *EntryService) SaveEntry(ctx context.Context, groupID string, r *entry.Record) (int64, error) {
	version, err := s.writer.SaveEntry(ctx, groupID, r)
	if err != nil {
		return 0, fmt.Errorf("save entry: %w", err)
	}

	if err := s.publishSyncMessage(ctx, r.GlobalID, groupID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"entry_id", r.GlobalID,
			"version", version,
			"error", err)
	}
	return version, nil
}

// DeleteEntry soft deletes r and saves it.
func (s *EntryService) DeleteEntry(ctx context.Context, groupID string, r *entry.Record) (int64, error) {
	entry.New(r).SetIsDeleted(true)
	return s.SaveEntry(ctx, groupID, r)
}

func (s *EntryService) publishSyncMessage(ctx context.Context, entryID, groupID string, version int64) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping sync message")
		return nil
	}
	return s.publisher.PublishEntrySync(ctx, entryID, groupID, version)
}

// Close closes the publisher and the writer when it is closable.
func (s *EntryService) Close() error {
	var errs []error

	if c, ok := s.writer.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("close entry service: %w", err)
	}
	return nil
}

// Package ports declares the collaborators the allocation service talks to.
package ports

import (
	"context"
	"time"

	"splid/internal/core"
	"splid/internal/entry"
)

// Ports for outbound adapters.
type (
	EntryReader interface {
		// GetEntry returns core.ErrNotFound when no entry has the id.
		GetEntry(ctx context.Context, id string) (*entry.Record, error)
		// ListEntries returns the group's entries that are not deleted.
		ListEntries(ctx context.Context, groupID string) ([]*entry.Record, error)
	}

	// EntryWriter persists a record, last write wins, and returns the new
	// version.
	EntryWriter interface {
		SaveEntry(ctx context.Context, groupID string, r *entry.Record) (version int64, err error)
	}

	// MembershipReader returns the group's members that are not deleted.
	MembershipReader interface {
		ActiveMembers(ctx context.Context, groupID string) ([]core.Member, error)
	}

	RateReader interface {
		CurrencyRates(ctx context.Context, groupID string) (core.CurrencyRates, error)
	}

	GroupReader interface {
		GetGroup(ctx context.Context, groupID string) (core.Group, error)
	}

	// ShareExporter publishes a committed allocation outside the service.
	ShareExporter interface {
		ExportEntry(ctx context.Context, groupID string, r *entry.Record) (ref string, err error)
	}

	// SyncTracker records which entry versions reached the exporter.
	SyncTracker interface {
		PendingEntries(ctx context.Context, limit int) ([]PendingEntry, error)
		// MarkSynced is a no-op when the entry was saved again after version.
		MarkSynced(ctx context.Context, id string, version int64) error
		MarkSyncError(ctx context.Context, id string) error
	}

	// Backend is everything the HTTP API needs from persistence.
	Backend interface {
		EntryReader
		EntryWriter
		MembershipReader
		RateReader
		GroupReader
	}
)

// PendingEntry is an entry version waiting for export.
type PendingEntry struct {
	ID        string
	GroupID   string
	Version   int64
	UpdatedAt time.Time
}

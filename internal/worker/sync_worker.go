package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"splid/internal/allocation"
	"splid/internal/amqp"
	"splid/internal/core"
	"splid/internal/entry"
	"splid/internal/ports"
)

// SyncWorker exports saved entries through a ShareExporter and records
// which versions made it.
type SyncWorker struct {
	entries   ports.EntryReader
	members   ports.MembershipReader
	tracker   ports.SyncTracker
	exporter  ports.ShareExporter
	batchSize int
	resolver  allocation.DefaultSplitResolver
}

func NewSyncWorker(entries ports.EntryReader, members ports.MembershipReader, tracker ports.SyncTracker, exporter ports.ShareExporter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		entries:   entries,
		members:   members,
		tracker:   tracker,
		exporter:  exporter,
		batchSize: batchSize,
	}
}

// HandleSyncMessage exports the entry named by msg. A returned error makes
// the consumer requeue the message.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"entry_id", msg.EntryID,
		"version", msg.Version)

	err := w.syncEntry(ctx, ports.PendingEntry{ID: msg.EntryID, GroupID: msg.GroupID, Version: msg.Version})
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Entry no longer exists, dropping sync message", "entry_id", msg.EntryID)
		return nil
	}
	return err
}

// ProcessPendingEntries exports one batch of entries that were saved but not
// exported, for example because a message was lost.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) error {
	_, _, err := w.processPending(ctx, w.batchSize)
	return err
}

// StartupSyncCheck exports a larger batch of pending entries once at boot.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	synced, failed, err := w.processPending(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("startup sync check: %w", err)
	}
	if synced+failed == 0 {
		slog.InfoContext(ctx, "No pending entries found on startup")
		return nil
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"total", synced+failed,
		"synced", synced,
		"errors", failed)
	return nil
}

// Run calls ProcessPendingEntries every interval until ctx is done.
func (w *SyncWorker) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessPendingEntries(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic sync failed", "error", err)
			}
		}
	}
}

func (w *SyncWorker) processPending(ctx context.Context, limit int) (synced, failed int, err error) {
	pending, err := w.tracker.PendingEntries(ctx, limit)
	if err != nil {
		return 0, 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	slog.DebugContext(ctx, "Processing pending entries", "count", len(pending))
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return synced, failed, err
		}
		if err := w.syncEntry(ctx, p); err != nil {
			slog.ErrorContext(ctx, "Failed to sync entry", "entry_id", p.ID, "error", err)
			failed++
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (w *SyncWorker) syncEntry(ctx context.Context, p ports.PendingEntry) error {
	r, err := w.entries.GetEntry(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("get entry from storage: %w", err)
	}

	groupID := p.GroupID
	if groupID == "" {
		groupID = r.Group.ObjectID
	}

	export, err := w.resolveImplicit(ctx, groupID, r)
	if err != nil {
		w.markError(ctx, p.ID)
		return err
	}

	ref, err := w.exporter.ExportEntry(ctx, groupID, export)
	if err != nil {
		w.markError(ctx, p.ID)
		return fmt.Errorf("export entry: %w", err)
	}

	if err := w.tracker.MarkSynced(ctx, p.ID, p.Version); err != nil {
		// The export succeeded; the entry is exported again on the next scan.
		slog.ErrorContext(ctx, "Failed to mark as synced", "entry_id", p.ID, "error", err)
	}

	slog.InfoContext(ctx, "Successfully synced entry",
		"entry_id", p.ID,
		"group_id", groupID,
		"version", p.Version,
		"sheets_ref", ref)
	return nil
}

// resolveImplicit returns a copy of r whose items without explicit profiteers
// carry the equal split over the group's active members.
func (w *SyncWorker) resolveImplicit(ctx context.Context, groupID string, r *entry.Record) (*entry.Record, error) {
	e := entry.New(r).Copy()
	var members []string
	for i, item := range e.Record().Items {
		if !item.P.P.IsEmpty() {
			continue
		}
		if members == nil {
			list, err := w.members.ActiveMembers(ctx, groupID)
			if err != nil {
				return nil, fmt.Errorf("get members of %s: %w", groupID, err)
			}
			members = core.ActiveMemberIDs(list)
		}
		if err := e.SetProfiteers(i, w.resolver.Effective(item.P.P, members)); err != nil {
			return nil, err
		}
	}
	return e.Record(), nil
}

func (w *SyncWorker) markError(ctx context.Context, id string) {
	if err := w.tracker.MarkSyncError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync error", "entry_id", id, "error", err)
	}
}

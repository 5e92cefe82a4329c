package adapters

import (
	"context"
	"path/filepath"
	"testing"

	"splid/internal/core"
	"splid/internal/entry"
	"splid/internal/ports"
	"splid/internal/services"
	"splid/internal/storage"
)

var _ ports.Backend = (*SQLiteAdapter)(nil)

type recordingPublisher struct {
	versions []int64
}

func (p *recordingPublisher) PublishEntrySync(_ context.Context, _, _ string, version int64) error {
	p.versions = append(p.versions, version)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func TestSQLiteAdapterPublishesOnSave(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "splid.db"))
	if err != nil {
		t.Fatal(err)
	}
	pub := &recordingPublisher{}
	adapter := NewSQLiteAdapter(repo, services.NewEntryService(repo, pub))
	defer adapter.Close()

	ctx := context.Background()
	if err := repo.UpsertGroup(ctx, core.Group{ID: "g1", CurrencyCode: "EUR"}, nil, nil); err != nil {
		t.Fatal(err)
	}
	r := entry.NewRecord("Tickets", "a", nil, entry.RecordOptions{GroupID: "g1"})

	for i := 0; i < 2; i++ {
		if _, err := adapter.SaveEntry(ctx, "g1", r); err != nil {
			t.Fatal(err)
		}
	}
	if len(pub.versions) != 2 || pub.versions[1] != 2 {
		t.Fatalf("published versions = %v", pub.versions)
	}

	got, err := adapter.GetEntry(ctx, r.GlobalID)
	if err != nil || got.GlobalID != r.GlobalID {
		t.Fatalf("GetEntry = %v, %v", got, err)
	}
}

package backend

import (
	"context"
	"path/filepath"
	"testing"

	"splid/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db", AMQPQueue: "q", SeedDir: "seed"}
	got, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != SQLiteBackend || got.SQLiteDBPath != "x.db" || got.AMQPQueue != "q" || got.SeedDir != "seed" {
		t.Errorf("FromAppConfig = %+v", got)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "a.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "redis"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatal(err)
	}
	defer res.Close()

	if _, err := res.Backend.GetGroup(context.Background(), "demo"); err != nil {
		t.Fatalf("demo group missing: %v", err)
	}
	if res.Tracker == nil || res.Ready(context.Background()) != nil {
		t.Error("memory backend should be ready with a tracker")
	}
}

func TestCreateSQLiteBackendSeedsOnce(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "splid.db")}

	for i := 0; i < 2; i++ {
		res, err := NewFactory(nil).CreateBackend(ctx, cfg)
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		entries, err := res.Backend.ListEntries(ctx, "demo")
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 2 {
			t.Fatalf("run %d: %d entries, want 2", i, len(entries))
		}
		if err := res.Ready(ctx); err != nil {
			t.Fatal(err)
		}
		if err := res.Close(); err != nil {
			t.Fatal(err)
		}
	}
}

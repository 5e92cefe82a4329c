package google

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"splid/internal/core"
	"splid/internal/entry"
)

func sampleEntry(t *testing.T) *entry.Entry {
	t.Helper()
	set, err := core.NewShareSet(core.Share{ID: "a", Share: 0.25}, core.Share{ID: "b", Share: 0.75})
	if err != nil {
		t.Fatal(err)
	}
	r := entry.NewRecord("Weekend", "a", []entry.Item{
		entry.NewItem("Hotel", 200, set),
		entry.NewItem("Fuel", 40, core.ShareSet{}),
	}, entry.RecordOptions{GroupID: "g1", CurrencyCode: "CHF"})
	r.GlobalID = "e1"
	e := entry.New(r)
	day := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)
	e.SetPurchasedDate(&day)
	return e
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows("g1", sampleEntry(t))
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2 (implicit item contributes none)", len(rows))
	}

	// Drop the export timestamp before comparing.
	got := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) != len(Header()) {
			t.Fatalf("row %d has %d columns, header has %d", i, len(r), len(Header()))
		}
		got[i] = r[:len(r)-1]
	}
	want := [][]any{
		{"e1", "g1", "2024-05-17", "Weekend", 0, "Hotel", "a", 0.25, 50.0, "CHF"},
		{"e1", "g1", "2024-05-17", "Weekend", 0, "Hotel", "b", 0.75, 150.0, "CHF"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
}

func TestBuildRowsDeletedEntry(t *testing.T) {
	e := sampleEntry(t)
	e.SetIsDeleted(true)
	if rows := BuildRows("g1", e); rows != nil {
		t.Fatalf("deleted entry exported %d rows", len(rows))
	}
}

func TestFindEntryRows(t *testing.T) {
	values := [][]any{
		{"Entry"},
		{"e1"},
		{},
		{"e2"},
		{" e1 "},
	}
	if diff := cmp.Diff([]int{1, 4}, findEntryRows(values, "e1")); diff != "" {
		t.Errorf("rows (-want +got):\n%s", diff)
	}
	if rows := findEntryRows(values, "e9"); rows != nil {
		t.Errorf("unexpected rows %v", rows)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{}); err == nil {
		t.Error("expected error without spreadsheet id")
	}
	if _, err := New(ctx, Config{SpreadsheetID: "s"}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestExportEntryWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "s", sheet: "Allocations"}
	if _, err := c.ExportEntry(context.Background(), "g1", sampleEntry(t).Record()); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
}

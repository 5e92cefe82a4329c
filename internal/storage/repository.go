package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"splid/internal/core"
	"splid/internal/entry"
	"splid/internal/ports"

	_ "modernc.org/sqlite"
)

const (
	syncPending = "pending"
	syncSynced  = "synced"
	syncError   = "error"
)

// SQLiteRepository is the durable Backend. Entry records are stored in their
// wire format alongside a version counter and sync state.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// UpsertGroup stores a group with its members and rates, replacing the
// existing members and rates.
func (r *SQLiteRepository) UpsertGroup(ctx context.Context, g core.Group, members []core.Member, rates core.CurrencyRates) error {
	if err := g.Validate(); err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, short_code, currency_code) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, short_code = excluded.short_code, currency_code = excluded.currency_code`,
		g.ID, g.Name, g.ShortCode, g.CurrencyCode); err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE group_id = ?`, g.ID); err != nil {
		return fmt.Errorf("clear members: %w", err)
	}
	for i, m := range members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO members (id, group_id, name, initials, is_deleted, position) VALUES (?, ?, ?, ?, ?, ?)`,
			m.ID, g.ID, m.Name, m.Initials, m.IsDeleted, i); err != nil {
			return fmt.Errorf("insert member %s: %w", m.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM currency_rates WHERE group_id = ?`, g.ID); err != nil {
		return fmt.Errorf("clear rates: %w", err)
	}
	for code, rate := range rates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO currency_rates (group_id, currency_code, rate) VALUES (?, ?, ?)`,
			g.ID, code, rate); err != nil {
			return fmt.Errorf("insert rate %s: %w", code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit group: %w", err)
	}

	slog.InfoContext(ctx, "Group stored in SQLite",
		"group_id", g.ID,
		"members", len(members),
		"rates", len(rates))
	return nil
}

// GroupCount returns the number of stored groups.
func (r *SQLiteRepository) GroupCount(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM groups`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return n, nil
}

// GetGroup implements ports.GroupReader
func (r *SQLiteRepository) GetGroup(ctx context.Context, groupID string) (core.Group, error) {
	var g core.Group
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, short_code, currency_code FROM groups WHERE id = ?`, groupID).
		Scan(&g.ID, &g.Name, &g.ShortCode, &g.CurrencyCode)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, core.ErrNotFound
	}
	if err != nil {
		return core.Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// ActiveMembers implements ports.MembershipReader
func (r *SQLiteRepository) ActiveMembers(ctx context.Context, groupID string) ([]core.Member, error) {
	if _, err := r.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, initials FROM members WHERE group_id = ? AND is_deleted = 0 ORDER BY position`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.ID, &m.Name, &m.Initials); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// CurrencyRates implements ports.RateReader
func (r *SQLiteRepository) CurrencyRates(ctx context.Context, groupID string) (core.CurrencyRates, error) {
	if _, err := r.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT currency_code, rate FROM currency_rates WHERE group_id = ?`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	defer rows.Close()

	rates := make(core.CurrencyRates)
	for rows.Next() {
		var code string
		var rate float64
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		rates[code] = rate
	}
	return rates, rows.Err()
}

// GetEntry implements ports.EntryReader
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (*entry.Record, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT record FROM entries WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry.ParseRecord([]byte(data))
}

// ListEntries implements ports.EntryReader
func (r *SQLiteRepository) ListEntries(ctx context.Context, groupID string) ([]*entry.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record FROM entries WHERE group_id = ? AND is_deleted = 0 ORDER BY created_at, rowid`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []*entry.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		rec, err := entry.ParseRecord([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveEntry implements ports.EntryWriter. Every save bumps the version and
// marks the entry for export.
func (r *SQLiteRepository) SaveEntry(ctx context.Context, groupID string, rec *entry.Record) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	data, err := rec.Marshal()
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}

	now := time.Now().UTC()
	var version int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO entries (id, group_id, record, is_deleted, version, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			group_id = excluded.group_id,
			record = excluded.record,
			is_deleted = excluded.is_deleted,
			version = entries.version + 1,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at
		RETURNING version`,
		rec.GlobalID, groupID, string(data), rec.IsDeleted, syncPending, now, now).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("save entry: %w", err)
	}

	slog.InfoContext(ctx, "Entry saved to SQLite",
		"entry_id", rec.GlobalID,
		"group_id", groupID,
		"version", version)
	return version, nil
}

// PendingEntries implements ports.SyncTracker. Entries whose last export
// failed are retried.
func (r *SQLiteRepository) PendingEntries(ctx context.Context, limit int) ([]ports.PendingEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, version, updated_at FROM entries
		WHERE sync_status != ?
		ORDER BY updated_at, id
		LIMIT ?`, syncSynced, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}
	defer rows.Close()

	var out []ports.PendingEntry
	for rows.Next() {
		var p ports.PendingEntry
		if err := rows.Scan(&p.ID, &p.GroupID, &p.Version, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced implements ports.SyncTracker
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE entries SET sync_status = ?, synced_version = ? WHERE id = ? AND version = ?`,
		syncSynced, version, id, version)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if err := r.exists(ctx, id); err != nil {
			return err
		}
		slog.DebugContext(ctx, "Entry changed since export, left pending", "entry_id", id, "version", version)
		return nil
	}

	slog.InfoContext(ctx, "Entry marked as synced", "entry_id", id, "version", version)
	return nil
}

// MarkSyncError implements ports.SyncTracker
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE entries SET sync_status = ? WHERE id = ?`, syncError, id)
	if err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}

	slog.WarnContext(ctx, "Entry marked with sync error", "entry_id", id)
	return nil
}

func (r *SQLiteRepository) exists(ctx context.Context, id string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM entries WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

// Package memory is an in-process Backend used for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"splid/internal/core"
	"splid/internal/entry"
	"splid/internal/ports"
)

// SeedFile is the file NewFromDir reads.
const SeedFile = "seed.json"

type storedEntry struct {
	groupID   string
	data      []byte
	version   int64
	synced    bool
	updatedAt time.Time
}

// Store keeps groups, members, rates and entries in memory. Records are kept
// serialized so callers never share memory with the store.
type Store struct {
	mu      sync.Mutex
	groups  map[string]core.Group
	members map[string][]core.Member
	rates   map[string]core.CurrencyRates
	entries map[string]*storedEntry
	order   []string
}

// GroupSeed describes one group in a seed file.
type GroupSeed struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	ShortCode    string             `json:"shortCode"`
	CurrencyCode string             `json:"currencyCode"`
	Members      []MemberSeed       `json:"members"`
	Rates        map[string]float64 `json:"rates"`
	Entries      []json.RawMessage  `json:"entries"`
}

type MemberSeed struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Initials  string `json:"initials"`
	IsDeleted bool   `json:"isDeleted"`
}

// Seed is the content of a seed file.
type Seed struct {
	Groups []GroupSeed `json:"groups"`
}

func New() *Store {
	return &Store{
		groups:  make(map[string]core.Group),
		members: make(map[string][]core.Member),
		rates:   make(map[string]core.CurrencyRates),
		entries: make(map[string]*storedEntry),
	}
}

// NewFromDir loads base/seed.json. A missing file yields the demo group.
func NewFromDir(base string) (*Store, error) {
	seed, err := ReadSeed(base)
	if err != nil {
		return nil, err
	}
	s := New()
	return s, s.Load(seed)
}

// ReadSeed decodes base/seed.json, falling back to DemoSeed when base is
// empty or has no seed file.
func ReadSeed(base string) (Seed, error) {
	if base == "" {
		return DemoSeed(), nil
	}
	data, err := os.ReadFile(filepath.Join(base, SeedFile))
	if os.IsNotExist(err) {
		return DemoSeed(), nil
	}
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// Group converts the seed to domain values.
func (g GroupSeed) Group() (core.Group, []core.Member, error) {
	group := core.Group{ID: g.ID, Name: g.Name, ShortCode: g.ShortCode, CurrencyCode: g.CurrencyCode}
	if err := group.Validate(); err != nil {
		return core.Group{}, nil, fmt.Errorf("seed group %q: %w", g.ID, err)
	}
	members := make([]core.Member, 0, len(g.Members))
	for _, m := range g.Members {
		member := core.Member{ID: m.ID, Name: m.Name, Initials: m.Initials, IsDeleted: m.IsDeleted}
		if err := member.Validate(); err != nil {
			return core.Group{}, nil, fmt.Errorf("seed member in %q: %w", g.ID, err)
		}
		members = append(members, member)
	}
	return group, members, nil
}

// Load adds the seeded groups, replacing groups with the same id.
func (s *Store) Load(seed Seed) error {
	for _, g := range seed.Groups {
		group, members, err := g.Group()
		if err != nil {
			return err
		}

		s.mu.Lock()
		s.groups[g.ID] = group
		s.members[g.ID] = members
		s.rates[g.ID] = core.CurrencyRates(g.Rates)
		s.mu.Unlock()

		for _, raw := range g.Entries {
			rec, err := entry.ParseRecord(raw)
			if err != nil {
				return fmt.Errorf("seed entry in %q: %w", g.ID, err)
			}
			if _, err := s.SaveEntry(context.Background(), g.ID, rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// DemoSeed is a small group with one explicit and one implicit allocation.
func DemoSeed() Seed {
	explicit, _ := core.NewShareSet(
		core.Share{ID: "alice", Share: 0.5},
		core.Share{ID: "bob", Share: 0.5},
	)
	dinner := entry.NewRecord("Dinner", "alice",
		[]entry.Item{entry.NewItem("Dinner", 90, explicit)},
		entry.RecordOptions{GroupID: "demo"})
	dinner.GlobalID = "demo-dinner"
	taxi := entry.NewRecord("Taxi", "bob",
		[]entry.Item{entry.NewItem("Taxi", 30, core.ShareSet{})},
		entry.RecordOptions{GroupID: "demo"})
	taxi.GlobalID = "demo-taxi"

	var entries []json.RawMessage
	for _, r := range []*entry.Record{dinner, taxi} {
		data, _ := r.Marshal()
		entries = append(entries, data)
	}

	return Seed{Groups: []GroupSeed{{
		ID:           "demo",
		Name:         "Demo trip",
		ShortCode:    "DEMO",
		CurrencyCode: "EUR",
		Members: []MemberSeed{
			{ID: "alice", Name: "Alice", Initials: "A"},
			{ID: "bob", Name: "Bob", Initials: "B"},
			{ID: "carol", Name: "Carol", Initials: "C"},
		},
		Rates:   map[string]float64{"EUR": 1, "USD": 0.92, "GBP": 1.17},
		Entries: entries,
	}}}
}

// GetEntry implements ports.EntryReader
func (s *Store) GetEntry(_ context.Context, id string) (*entry.Record, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	return entry.ParseRecord(e.data)
}

// ListEntries implements ports.EntryReader
func (s *Store) ListEntries(_ context.Context, groupID string) ([]*entry.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entry.Record
	for _, id := range s.order {
		e := s.entries[id]
		if e.groupID != groupID {
			continue
		}
		rec, err := entry.ParseRecord(e.data)
		if err != nil {
			return nil, err
		}
		if rec.IsDeleted {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveEntry implements ports.EntryWriter
func (s *Store) SaveEntry(_ context.Context, groupID string, r *entry.Record) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	data, err := r.Marshal()
	if err != nil {
		return 0, fmt.Errorf("encode entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[r.GlobalID]
	if !ok {
		e = &storedEntry{}
		s.entries[r.GlobalID] = e
		s.order = append(s.order, r.GlobalID)
	}
	e.groupID = groupID
	e.data = data
	e.version++
	e.synced = false
	e.updatedAt = time.Now()
	return e.version, nil
}

// ActiveMembers implements ports.MembershipReader
func (s *Store) ActiveMembers(_ context.Context, groupID string) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, core.ErrNotFound
	}
	var out []core.Member
	for _, m := range s.members[groupID] {
		if !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out, nil
}

// CurrencyRates implements ports.RateReader
func (s *Store) CurrencyRates(_ context.Context, groupID string) (core.CurrencyRates, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, core.ErrNotFound
	}
	out := make(core.CurrencyRates, len(s.rates[groupID]))
	for k, v := range s.rates[groupID] {
		out[k] = v
	}
	return out, nil
}

// GetGroup implements ports.GroupReader
func (s *Store) GetGroup(_ context.Context, groupID string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return core.Group{}, core.ErrNotFound
	}
	return g, nil
}

// PendingEntries implements ports.SyncTracker, oldest first.
func (s *Store) PendingEntries(_ context.Context, limit int) ([]ports.PendingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.PendingEntry
	for id, e := range s.entries {
		if e.synced {
			continue
		}
		out = append(out, ports.PendingEntry{ID: id, GroupID: e.groupID, Version: e.version, UpdatedAt: e.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkSynced implements ports.SyncTracker
func (s *Store) MarkSynced(_ context.Context, id string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return core.ErrNotFound
	}
	if e.version == version {
		e.synced = true
	}
	return nil
}

// MarkSyncError implements ports.SyncTracker. The entry stays pending.
func (s *Store) MarkSyncError(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return core.ErrNotFound
	}
	return nil
}

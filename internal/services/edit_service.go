package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"splid/internal/allocation"
	"splid/internal/core"
	"splid/internal/entry"
	"splid/internal/ports"
)

// Session is a draft bound to the item it will be committed to. EntryID is
// empty for a draft that creates a new expense on commit.
type Session struct {
	EntryID string
	GroupID string
	Item    int
	Draft   *allocation.Draft
}

// CommitOptions fill the record created when committing a session without
// an entry. PrimaryPayer defaults to the first active member.
type CommitOptions struct {
	Title        string
	PrimaryPayer string
}

// Committed is the outcome of a commit.
type Committed struct {
	Record  *entry.Record
	Version int64
}

// EditService loads entries, runs the edits the entry adapter offers and
// saves the result. Writes go through backend.SaveEntry, last write wins.
type EditService struct {
	backend ports.Backend
}

func NewEditService(backend ports.Backend) *EditService {
	return &EditService{backend: backend}
}

// GetEntry returns the entry with id.
func (s *EditService) GetEntry(ctx context.Context, id string) (*entry.Entry, error) {
	r, err := s.backend.GetEntry(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entry.New(r), nil
}

// ListEntries returns the group's entries.
func (s *EditService) ListEntries(ctx context.Context, groupID string) ([]*entry.Entry, error) {
	records, err := s.backend.ListEntries(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	out := make([]*entry.Entry, len(records))
	for i, r := range records {
		out[i] = entry.New(r)
	}
	return out, nil
}

// Members returns the group's active members.
func (s *EditService) Members(ctx context.Context, groupID string) ([]core.Member, error) {
	members, err := s.backend.ActiveMembers(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", groupID, err)
	}
	return members, nil
}

// NewDraft starts an empty allocation over the group's active members for a
// new expense worth total.
func (s *EditService) NewDraft(ctx context.Context, groupID string, total float64) (*Session, error) {
	members, err := s.Members(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return &Session{
		GroupID: groupID,
		Draft:   allocation.NewDraft(total, core.ActiveMemberIDs(members), core.ShareSet{}),
	}, nil
}

// OpenDraft seeds a draft from item of entryID. When groupID is known the
// entry and the group's membership are loaded concurrently; otherwise the
// group is taken from the entry.
func (s *EditService) OpenDraft(ctx context.Context, groupID, entryID string, item int) (*Session, error) {
	var (
		r       *entry.Record
		members []core.Member
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		r, err = s.backend.GetEntry(gctx, entryID)
		return err
	})
	if groupID != "" {
		g.Go(func() error {
			var err error
			members, err = s.backend.ActiveMembers(gctx, groupID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("open draft for %s: %w", entryID, err)
	}

	if owner := r.Group.ObjectID; groupID == "" {
		groupID = owner
		m, err := s.Members(ctx, groupID)
		if err != nil {
			return nil, err
		}
		members = m
	} else if owner != "" && owner != groupID {
		return nil, fmt.Errorf("open draft for %s: %w", entryID, core.ErrNotFound)
	}

	set, err := entry.New(r).ShareSet(item)
	if err != nil {
		return nil, fmt.Errorf("open draft for %s: %w", entryID, err)
	}

	return &Session{
		EntryID: entryID,
		GroupID: groupID,
		Item:    item,
		Draft:   allocation.NewDraft(r.Items[item].AM, core.ActiveMemberIDs(members), set),
	}, nil
}

// Commit writes the session's allocation. An existing entry is reloaded so
// edits made elsewhere since the draft was opened survive except for this
// item's profiteers.
func (s *EditService) Commit(ctx context.Context, sess *Session, opts CommitOptions) (Committed, error) {
	if sess.EntryID == "" {
		return s.commitNew(ctx, sess, opts)
	}

	e, err := s.GetEntry(ctx, sess.EntryID)
	if err != nil {
		return Committed{}, err
	}
	if err := e.SetProfiteers(sess.Item, sess.Draft.ShareSet()); err != nil {
		return Committed{}, fmt.Errorf("commit draft: %w", err)
	}
	return s.save(ctx, sess.GroupID, e)
}

func (s *EditService) commitNew(ctx context.Context, sess *Session, opts CommitOptions) (Committed, error) {
	group, err := s.backend.GetGroup(ctx, sess.GroupID)
	if err != nil {
		return Committed{}, fmt.Errorf("get group %s: %w", sess.GroupID, err)
	}
	payer := opts.PrimaryPayer
	if payer == "" {
		if members := sess.Draft.Members(); len(members) > 0 {
			payer = members[0]
		}
	}
	r := entry.NewRecord(opts.Title, payer,
		[]entry.Item{entry.NewItem(opts.Title, sess.Draft.Total(), sess.Draft.ShareSet())},
		entry.RecordOptions{CurrencyCode: group.CurrencyCode, GroupID: group.ID})

	c, err := s.save(ctx, group.ID, entry.New(r))
	if err != nil {
		return Committed{}, err
	}
	sess.EntryID = r.GlobalID
	return c, nil
}

// ChangeCurrency converts the entry to code using its group's rates.
func (s *EditService) ChangeCurrency(ctx context.Context, entryID, code string) (Committed, error) {
	return s.mutate(ctx, entryID, func(ctx context.Context, e *entry.Entry, groupID string) error {
		rates, err := s.backend.CurrencyRates(ctx, groupID)
		if err != nil {
			return fmt.Errorf("get rates: %w", err)
		}
		return e.SetCurrency(code, rates)
	})
}

func (s *EditService) MergeSubItems(ctx context.Context, entryID string) (Committed, error) {
	return s.mutate(ctx, entryID, func(_ context.Context, e *entry.Entry, _ string) error {
		e.MergeSubItems()
		return nil
	})
}

// SetAmount fails with core.ErrSplitExpense on entries with several items.
func (s *EditService) SetAmount(ctx context.Context, entryID string, amount float64) (Committed, error) {
	return s.mutate(ctx, entryID, func(_ context.Context, e *entry.Entry, _ string) error {
		return e.SetAmount(amount)
	})
}

func (s *EditService) AddSubItem(ctx context.Context, entryID, title string, amount float64) (Committed, error) {
	return s.mutate(ctx, entryID, func(_ context.Context, e *entry.Entry, _ string) error {
		e.AddSubItem(title, amount, core.ShareSet{})
		return nil
	})
}

func (s *EditService) DeleteSubItem(ctx context.Context, entryID string, index int) (Committed, error) {
	return s.mutate(ctx, entryID, func(_ context.Context, e *entry.Entry, _ string) error {
		e.DeleteSubItem(index)
		return nil
	})
}

func (s *EditService) SetDeleted(ctx context.Context, entryID string, deleted bool) (Committed, error) {
	return s.mutate(ctx, entryID, func(_ context.Context, e *entry.Entry, _ string) error {
		e.SetIsDeleted(deleted)
		return nil
	})
}

// mutate loads entryID, applies fn and saves. Nothing is saved when fn fails.
func (s *EditService) mutate(ctx context.Context, entryID string, fn func(context.Context, *entry.Entry, string) error) (Committed, error) {
	e, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return Committed{}, err
	}
	groupID := e.Record().Group.ObjectID
	if err := fn(ctx, e, groupID); err != nil {
		return Committed{}, err
	}
	return s.save(ctx, groupID, e)
}

func (s *EditService) save(ctx context.Context, groupID string, e *entry.Entry) (Committed, error) {
	version, err := s.backend.SaveEntry(ctx, groupID, e.Record())
	if err != nil {
		return Committed{}, fmt.Errorf("save entry %s: %w", e.ID(), err)
	}
	slog.DebugContext(ctx, "Entry saved", "entry_id", e.ID(), "group_id", groupID, "version", version)
	return Committed{Record: e.Record(), Version: version}, nil
}

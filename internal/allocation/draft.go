package allocation

import "splid/internal/core"

// View is a profiteer as presented to a client: the share plus the amount it
// represents of the draft's total.
type View struct {
	ID     string  `json:"id"`
	Share  float64 `json:"share"`
	Amount float64 `json:"amount"`
}

// Draft is an editing session over one item's allocation. It owns its
// ShareSet; nothing else observes it until the caller commits ShareSet().
// A Draft is not safe for concurrent use.
type Draft struct {
	total    float64
	members  []string
	seed     core.ShareSet
	current  core.ShareSet
	resolver DefaultSplitResolver
}

// NewDraft starts a session from initial for an item worth total. members is
// the active membership snapshot used while the allocation is still implicit.
func NewDraft(total float64, members []string, initial core.ShareSet) *Draft {
	return &Draft{
		total:   total,
		members: append([]string(nil), members...),
		seed:    initial.Clone(),
		current: initial.Clone(),
	}
}

// Total returns the item amount the draft allocates.
func (d *Draft) Total() float64 { return d.total }

// SetTotal changes the amount used by SetAmount and by the view amounts.
func (d *Draft) SetTotal(total float64) { d.total = total }

// Members returns the membership snapshot the draft was opened with.
func (d *Draft) Members() []string { return append([]string(nil), d.members...) }

// ShareSet returns the explicit allocation, empty while nothing was edited
// on an implicit split.
func (d *Draft) ShareSet() core.ShareSet { return d.current.Clone() }

// Effective returns the allocation a reader sees, falling back to the equal
// split over members.
func (d *Draft) Effective() core.ShareSet {
	return d.resolver.Effective(d.current, d.members)
}

// Profiteers returns the effective allocation with amounts.
func (d *Draft) Profiteers() []View {
	shares := d.Effective().Shares()
	views := make([]View, len(shares))
	for i, sh := range shares {
		views[i] = View{ID: sh.ID, Share: sh.Share, Amount: d.total * sh.Share}
	}
	return views
}

// Changed reports whether the draft's allocation differs from its seed.
func (d *Draft) Changed() bool {
	return !d.current.Equal(d.seed)
}

// AddParticipant gives id a 1/(n+1) share. Like every edit, the first one
// turns an implicit equal split into an explicit set over the members.
func (d *Draft) AddParticipant(id string) error {
	return d.apply(func(set core.ShareSet) (core.ShareSet, error) {
		return AddParticipant(set, id)
	})
}

// RemoveParticipant drops id and spreads its share over the others.
func (d *Draft) RemoveParticipant(id string) error {
	return d.apply(func(set core.ShareSet) (core.ShareSet, error) {
		return RemoveParticipant(set, id)
	})
}

// SetPercentage moves id to percent of the total. Values outside [0, 100]
// leave the shares unchanged.
func (d *Draft) SetPercentage(id string, percent float64) error {
	return d.apply(func(set core.ShareSet) (core.ShareSet, error) {
		return SetPercentage(set, id, percent)
	})
}

// SetAmount moves id to amount out of Total(). Values outside [0, Total()]
// leave the shares unchanged.
func (d *Draft) SetAmount(id string, amount float64) error {
	return d.apply(func(set core.ShareSet) (core.ShareSet, error) {
		return SetAmount(set, id, amount, d.total)
	})
}

// apply materializes the equal baseline on the first edit and replaces the
// current set only when the edit succeeds.
func (d *Draft) apply(edit func(core.ShareSet) (core.ShareSet, error)) error {
	base := d.resolver.Materialize(d.current, d.members)
	next, err := edit(base)
	if err != nil {
		return err
	}
	d.current = next
	return nil
}

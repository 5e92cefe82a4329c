package allocation

import "splid/internal/core"

// DefaultSplitResolver turns an empty ShareSet into the implicit equal split
// across the group's active members.
type DefaultSplitResolver struct{}

// EqualSplit gives each member 1/M, in member order. Repeated ids count once.
func (DefaultSplitResolver) EqualSplit(members []string) core.ShareSet {
	ids := make([]string, 0, len(members))
	seen := make(map[string]struct{}, len(members))
	for _, id := range members {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return core.ShareSet{}
	}

	share := 1 / float64(len(ids))
	shares := make([]core.Share, len(ids))
	for i, id := range ids {
		shares[i] = core.Share{ID: id, Share: share}
	}
	set, _ := core.NewShareSet(shares...)
	return set
}

// Effective returns set when it holds an explicit allocation, otherwise the
// equal split over members. The result is never stored back.
func (r DefaultSplitResolver) Effective(set core.ShareSet, members []string) core.ShareSet {
	if !set.IsEmpty() {
		return set
	}
	return r.EqualSplit(members)
}

// Materialize returns the concrete set the first edit of a session starts from.
func (r DefaultSplitResolver) Materialize(set core.ShareSet, members []string) core.ShareSet {
	return r.Effective(set, members).Clone()
}

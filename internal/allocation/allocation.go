package allocation

import (
	"fmt"
	"math"

	"splid/internal/core"
)

var (
	proportional = ProportionalRebalance{}
	uniformDelta = UniformDeltaRebalance{}
)

// AddParticipant gives id a 1/(n+1) share and shrinks every existing share
// proportionally to make room for it. The new participant goes last.
func AddParticipant(set core.ShareSet, id string) (core.ShareSet, error) {
	if set.Contains(id) {
		return set, participantExists(id)
	}

	n := set.Len()
	if n > 0 && set.Sum() == 0 {
		return set, zeroWeight("add", id)
	}
	newShare := 1 / float64(n+1)
	shares := proportional.Shrink(set.Shares(), 1-newShare)
	shares = append(shares, core.Share{ID: id, Share: newShare})
	return finiteSet(set, id, shares)
}

// RemoveParticipant drops id and hands its share to the remaining
// participants in proportion to their current share. Removing the last
// participant yields the empty set. When the remaining participants hold no
// weight there is nothing to scale and the removal fails with
// INVALID_OPERATION.
func RemoveParticipant(set core.ShareSet, id string) (core.ShareSet, error) {
	idx := set.Index(id)
	if idx < 0 {
		return set, participantNotFound(id)
	}

	all := set.Shares()
	removed := all[idx].Share
	rest := append(all[:idx:idx], all[idx+1:]...)
	if len(rest) == 0 {
		return core.ShareSet{}, nil
	}
	if core.SumShares(rest) == 0 {
		return set, zeroWeight("remove", id)
	}
	return finiteSet(set, id, proportional.Absorb(rest, removed))
}

// SetPercentage moves id to percent/100 of the item. Percentages above 100 or
// below 0 are ignored and the set is returned unchanged.
func SetPercentage(set core.ShareSet, id string, percent float64) (core.ShareSet, error) {
	if percent > 100 || percent < 0 {
		return set, nil
	}
	return setShare(set, id, percent/100)
}

// SetAmount moves id to amount/total of the item. Amounts above total or below
// 0 are ignored, as is any edit against a non-positive total.
func SetAmount(set core.ShareSet, id string, amount, total float64) (core.ShareSet, error) {
	if total <= 0 || amount > total || amount < 0 {
		return set, nil
	}
	return setShare(set, id, amount/total)
}

func setShare(set core.ShareSet, id string, newShare float64) (core.ShareSet, error) {
	idx := set.Index(id)
	if idx < 0 {
		return set, participantNotFound(id)
	}
	return finiteSet(set, id, uniformDelta.Apply(set.Shares(), idx, newShare))
}

// finiteSet builds the edited set, or returns prev with INVALID_OPERATION
// when a share is NaN or infinite.
func finiteSet(prev core.ShareSet, id string, shares []core.Share) (core.ShareSet, error) {
	for _, sh := range shares {
		if math.IsNaN(sh.Share) || math.IsInf(sh.Share, 0) {
			return prev, core.WithMetadata(core.CodeInvalidOperation,
				fmt.Sprintf("edit of %q produced a non-finite share", id),
				map[string]string{"participant_id": id})
		}
	}
	return core.NewShareSet(shares...)
}

func zeroWeight(op, id string) error {
	return core.WithMetadata(core.CodeInvalidOperation,
		fmt.Sprintf("cannot %s %q: remaining participants hold no share", op, id),
		map[string]string{"participant_id": id})
}

func participantExists(id string) error {
	return core.WithMetadata(core.CodeParticipantExists,
		fmt.Sprintf("participant %q already in allocation", id),
		map[string]string{"participant_id": id})
}

func participantNotFound(id string) error {
	return core.WithMetadata(core.CodeParticipantNotFound,
		fmt.Sprintf("participant %q not in allocation", id),
		map[string]string{"participant_id": id})
}

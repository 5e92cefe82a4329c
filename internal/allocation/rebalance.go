// Package allocation implements the share allocation engine: pure functions
// that keep a profiteer ShareSet consistent while participants are added,
// removed or edited, plus the equal-split resolver and the Draft editing
// session built on top of them.
package allocation

import "splid/internal/core"

// ProportionalRebalance rescales shares in proportion to their current
// weight. It backs participant addition and removal.
type ProportionalRebalance struct{}

// Shrink rescales every share so the shares sum to keep. Each value becomes
// share / sum * keep, where sum is the left-to-right sum of the input.
func (ProportionalRebalance) Shrink(shares []core.Share, keep float64) []core.Share {
	sum := core.SumShares(shares)
	out := make([]core.Share, len(shares))
	for i, sh := range shares {
		out[i] = core.Share{ID: sh.ID, Share: sh.Share / sum * keep}
	}
	return out
}

// Absorb spreads freed over shares in proportion to their weight: each value
// becomes share + share / sum * freed.
func (ProportionalRebalance) Absorb(shares []core.Share, freed float64) []core.Share {
	sum := core.SumShares(shares)
	out := make([]core.Share, len(shares))
	for i, sh := range shares {
		// The explicit conversion keeps the product rounded before the
		// addition, so the compiler cannot fuse it into an FMA.
		out[i] = core.Share{ID: sh.ID, Share: sh.Share + float64(sh.Share/sum*freed)}
	}
	return out
}

// UniformDeltaRebalance moves one participant to a new share and spreads the
// opposite of the change evenly over everyone else. It does not clamp: other
// participants can go negative.
type UniformDeltaRebalance struct{}

// Apply sets shares[index] to newShare (as share + delta) and subtracts
// delta/(n-1) from every other participant.
func (UniformDeltaRebalance) Apply(shares []core.Share, index int, newShare float64) []core.Share {
	delta := newShare - shares[index].Share
	others := float64(len(shares) - 1)
	out := make([]core.Share, len(shares))
	for i, sh := range shares {
		if i == index {
			out[i] = core.Share{ID: sh.ID, Share: sh.Share + delta}
			continue
		}
		out[i] = core.Share{ID: sh.ID, Share: sh.Share - delta/others}
	}
	return out
}

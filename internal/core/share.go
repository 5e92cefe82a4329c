package core

import "fmt"

// Share is the fraction of an item's amount attributed to one profiteer.
type Share struct {
	ID    string
	Share float64
}

// ShareSet is an ordered collection of unique profiteer shares.
//
// A non-empty set is expected to sum to 1 within floating point drift. The
// zero value is the empty set, which means "no explicit allocation yet" and
// not "owed by nobody". ShareSet values are immutable: every operation that
// changes an allocation builds a new set.
type ShareSet struct {
	shares []Share
}

// NewShareSet builds a set preserving the given order.
// Duplicate ids are rejected.
func NewShareSet(shares ...Share) (ShareSet, error) {
	seen := make(map[string]struct{}, len(shares))
	out := make([]Share, 0, len(shares))
	for _, s := range shares {
		if _, ok := seen[s.ID]; ok {
			return ShareSet{}, WithMetadata(CodeParticipantExists,
				fmt.Sprintf("duplicate participant %q", s.ID),
				map[string]string{"participant_id": s.ID})
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}
	return ShareSet{shares: out}, nil
}

// Len returns the number of participants.
func (s ShareSet) Len() int { return len(s.shares) }

// IsEmpty reports whether no explicit allocation exists.
func (s ShareSet) IsEmpty() bool { return len(s.shares) == 0 }

// Index returns the position of id, or -1.
func (s ShareSet) Index(id string) int {
	for i, sh := range s.shares {
		if sh.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether id participates.
func (s ShareSet) Contains(id string) bool { return s.Index(id) >= 0 }

// Share returns the fraction held by id.
func (s ShareSet) Share(id string) (float64, bool) {
	if i := s.Index(id); i >= 0 {
		return s.shares[i].Share, true
	}
	return 0, false
}

// IDs returns participant ids in insertion order.
func (s ShareSet) IDs() []string {
	ids := make([]string, len(s.shares))
	for i, sh := range s.shares {
		ids[i] = sh.ID
	}
	return ids
}

// Shares returns a copy of the entries in insertion order.
func (s ShareSet) Shares() []Share {
	return append([]Share(nil), s.shares...)
}

// Sum adds the shares left to right starting from zero.
func (s ShareSet) Sum() float64 {
	return SumShares(s.shares)
}

// Clone returns an independent copy.
func (s ShareSet) Clone() ShareSet {
	return ShareSet{shares: s.Shares()}
}

// Equal reports whether both sets hold the same ids, order and exact values.
func (s ShareSet) Equal(o ShareSet) bool {
	if len(s.shares) != len(o.shares) {
		return false
	}
	for i := range s.shares {
		if s.shares[i] != o.shares[i] {
			return false
		}
	}
	return true
}

// String renders the set for logs.
func (s ShareSet) String() string {
	return fmt.Sprint(s.shares)
}

// MarshalJSON encodes the set as a JSON object keyed by participant id,
// keeping insertion order.
func (s ShareSet) MarshalJSON() ([]byte, error) {
	return marshalObject(len(s.shares), func(i int) (string, float64) {
		return s.shares[i].ID, s.shares[i].Share
	})
}

// UnmarshalJSON decodes a JSON object keeping the document's key order.
func (s *ShareSet) UnmarshalJSON(data []byte) error {
	var shares []Share
	err := unmarshalObject(data, func(key string, v float64) {
		shares = append(shares, Share{ID: key, Share: v})
	})
	if err != nil {
		return fmt.Errorf("decode share set: %w", err)
	}
	set, err := NewShareSet(shares...)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// SumShares adds shares left to right starting from zero.
func SumShares(shares []Share) float64 {
	sum := 0.0
	for _, sh := range shares {
		sum += sh.Share
	}
	return sum
}

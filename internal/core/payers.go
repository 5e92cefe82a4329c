package core

import "fmt"

// PayerAmount is an absolute amount paid by a secondary payer.
type PayerAmount struct {
	ID     string
	Amount float64
}

// PayerAmounts is an ordered id -> amount mapping encoded as a JSON object.
type PayerAmounts struct {
	entries []PayerAmount
}

// Len returns the number of payers.
func (p *PayerAmounts) Len() int {
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Entries returns a copy of the payers in insertion order.
func (p *PayerAmounts) Entries() []PayerAmount {
	if p == nil {
		return nil
	}
	return append([]PayerAmount(nil), p.entries...)
}

// Get returns the amount paid by id.
func (p *PayerAmounts) Get(id string) (float64, bool) {
	if p == nil {
		return 0, false
	}
	for _, e := range p.entries {
		if e.ID == id {
			return e.Amount, true
		}
	}
	return 0, false
}

// Set adds or replaces the amount for id, keeping the original position.
func (p *PayerAmounts) Set(id string, amount float64) {
	for i := range p.entries {
		if p.entries[i].ID == id {
			p.entries[i].Amount = amount
			return
		}
	}
	p.entries = append(p.entries, PayerAmount{ID: id, Amount: amount})
}

// Delete removes id if present.
func (p *PayerAmounts) Delete(id string) {
	if p == nil {
		return
	}
	out := p.entries[:0]
	for _, e := range p.entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	p.entries = out
}

// Scale multiplies every amount by factor.
func (p *PayerAmounts) Scale(factor float64) {
	if p == nil {
		return
	}
	for i := range p.entries {
		p.entries[i].Amount = p.entries[i].Amount * factor
	}
}

// Clone returns an independent copy; nil stays nil.
func (p *PayerAmounts) Clone() *PayerAmounts {
	if p == nil {
		return nil
	}
	return &PayerAmounts{entries: p.Entries()}
}

func (p PayerAmounts) MarshalJSON() ([]byte, error) {
	return marshalObject(len(p.entries), func(i int) (string, float64) {
		return p.entries[i].ID, p.entries[i].Amount
	})
}

func (p *PayerAmounts) UnmarshalJSON(data []byte) error {
	var entries []PayerAmount
	err := unmarshalObject(data, func(key string, v float64) {
		entries = append(entries, PayerAmount{ID: key, Amount: v})
	})
	if err != nil {
		return fmt.Errorf("decode payer amounts: %w", err)
	}
	p.entries = nil
	for _, e := range entries {
		p.Set(e.ID, e.Amount)
	}
	return nil
}

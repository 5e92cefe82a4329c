package core

import (
	"strings"
)

type (
	// Member is a participant of a group.
	Member struct {
		ID        string
		Name      string
		Initials  string
		IsDeleted bool
	}

	// Group is a shared-expense group. CurrencyCode is the group's default
	// currency for new expenses.
	Group struct {
		ID           string
		Name         string
		ShortCode    string
		CurrencyCode string
	}

	// CurrencyRates maps a currency code to its rate against the group's
	// reference currency.
	CurrencyRates map[string]float64
)

func (m Member) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return ErrEmptyID
	}
	return nil
}

func (g Group) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(g.CurrencyCode) == "" {
		return ErrEmptyCurrency
	}
	return nil
}

// Factor returns the multiplier converting amounts in from into amounts in to.
func (r CurrencyRates) Factor(from, to string) (float64, error) {
	fromRate, ok := r[from]
	if !ok {
		return 0, WithMetadata(CodeUnknownCurrency, "unknown currency "+from, map[string]string{"currency_code": from})
	}
	toRate, ok := r[to]
	if !ok {
		return 0, WithMetadata(CodeUnknownCurrency, "unknown currency "+to, map[string]string{"currency_code": to})
	}
	if fromRate <= 0 || toRate <= 0 {
		return 0, ErrInvalidRate
	}
	return fromRate / toRate, nil
}

// ActiveMemberIDs returns the ids of members that are not deleted, deduped by
// id and in the given order.
func ActiveMemberIDs(members []Member) []string {
	seen := make(map[string]struct{}, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.IsDeleted {
			continue
		}
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}
	return ids
}

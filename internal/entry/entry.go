package entry

import (
	"fmt"
	"time"

	"splid/internal/core"
)

// CategoryView is the display form of a category.
type CategoryView struct {
	IsCustom bool   `json:"isCustom"`
	Value    string `json:"value"`
	Title    string `json:"title"`
}

// ProfiteerView is a profiteer of an item with its derived amount.
type ProfiteerView struct {
	ID        string   `json:"id"`
	Share     float64  `json:"share"`
	Amount    float64  `json:"amount"`
	NumShares *float64 `json:"numShares,omitempty"`
}

// ItemView is the display form of an item.
type ItemView struct {
	Amount     float64         `json:"amount"`
	Title      *string         `json:"title,omitempty"`
	NumShares  *float64        `json:"numShares,omitempty"`
	Profiteers []ProfiteerView `json:"profiteers"`
}

// Entry reads and mutates a Record. All changes to a record go through it.
type Entry struct {
	raw *Record
}

// New wraps r. The entry mutates r in place.
func New(r *Record) *Entry {
	if r.Items == nil {
		r.Items = []Item{}
	}
	return &Entry{raw: r}
}

// Parse decodes a stored record and wraps it.
func Parse(data []byte) (*Entry, error) {
	r, err := ParseRecord(data)
	if err != nil {
		return nil, err
	}
	return New(r), nil
}

// Record returns the underlying record.
func (e *Entry) Record() *Record { return e.raw }

// Marshal serializes the underlying record.
func (e *Entry) Marshal() ([]byte, error) { return e.raw.Marshal() }

// Copy returns an entry over a deep copy of the record.
func (e *Entry) Copy() *Entry { return &Entry{raw: e.raw.clone()} }

func (e *Entry) ID() string           { return e.raw.GlobalID }
func (e *Entry) CurrencyCode() string { return e.raw.CurrencyCode }
func (e *Entry) IsPayment() bool      { return e.raw.IsPayment }
func (e *Entry) IsDeleted() bool      { return e.raw.IsDeleted }
func (e *Entry) PrimaryPayer() string { return e.raw.PrimaryPayer }
func (e *Entry) Title() *string       { return e.raw.Title }

// Amount is the sum of all item amounts.
func (e *Entry) Amount() float64 {
	sum := 0.0
	for _, it := range e.raw.Items {
		sum += it.AM
	}
	return sum
}

// Category returns nil when unset or deleted.
func (e *Entry) Category() *CategoryView {
	c := e.raw.Category
	if c == nil || c.Op != "" {
		return nil
	}
	return &CategoryView{IsCustom: c.Type == "custom", Value: c.Type, Title: c.OriginalName}
}

func (e *Entry) CreatedDate() time.Time {
	t, _ := e.raw.CreatedGlobally.Time()
	return t
}

// PurchasedDate returns nil when unset or deleted.
func (e *Entry) PurchasedDate() *time.Time {
	if e.raw.Date == nil {
		return nil
	}
	t, ok := e.raw.Date.Time()
	if !ok {
		return nil
	}
	return &t
}

// SecondaryPayers returns nil when the record has no payer map.
func (e *Entry) SecondaryPayers() []core.PayerAmount {
	if e.raw.SecondaryPayers == nil {
		return nil
	}
	return e.raw.SecondaryPayers.Entries()
}

// IsSplitExpense reports whether the expense has more than one item.
func (e *Entry) IsSplitExpense() bool { return len(e.raw.Items) > 1 }

// Items returns the display form of every item.
func (e *Entry) Items() []ItemView {
	views := make([]ItemView, len(e.raw.Items))
	for i, it := range e.raw.Items {
		var shareSize float64
		if it.P.SS != nil && *it.P.SS != 0 {
			shareSize = 1 / *it.P.SS
		}
		shares := it.P.P.Shares()
		profiteers := make([]ProfiteerView, len(shares))
		for j, sh := range shares {
			pv := ProfiteerView{ID: sh.ID, Share: sh.Share, Amount: sh.Share * it.AM}
			if shareSize != 0 {
				n := sh.Share / shareSize
				pv.NumShares = &n
			}
			profiteers[j] = pv
		}
		views[i] = ItemView{Amount: it.AM, Title: it.T, NumShares: it.P.SS, Profiteers: profiteers}
	}
	return views
}

// ShareSet returns the allocation stored on item index.
func (e *Entry) ShareSet(index int) (core.ShareSet, error) {
	if err := e.checkIndex(index); err != nil {
		return core.ShareSet{}, err
	}
	return e.raw.Items[index].P.P.Clone(), nil
}

// SetProfiteers replaces the allocation of item index.
func (e *Entry) SetProfiteers(index int, set core.ShareSet) error {
	if err := e.checkIndex(index); err != nil {
		return err
	}
	e.raw.Items[index].P.P = set.Clone()
	return nil
}

func (e *Entry) SetTitle(title string) *Entry {
	e.raw.Title = &title
	return e
}

func (e *Entry) SetPrimaryPayer(id string) *Entry {
	e.raw.PrimaryPayer = id
	return e
}

// SetCategory stores c, or a delete operation when c is nil.
func (e *Entry) SetCategory(c *CategoryView) *Entry {
	if c == nil {
		e.raw.Category = &Category{Op: opDelete}
		return e
	}
	e.raw.Category = &Category{Type: c.Value, OriginalName: c.Title}
	return e
}

// SetPurchasedDate stores t, or a delete operation when t is nil.
func (e *Entry) SetPurchasedDate(t *time.Time) *Entry {
	if t == nil {
		e.raw.Date = &DateField{Op: opDelete}
		return e
	}
	d := newDate(*t)
	e.raw.Date = &d
	return e
}

// SetIsDeleted marks the entry deleted. Deleted entries are not listed.
func (e *Entry) SetIsDeleted(deleted bool) *Entry {
	e.raw.IsDeleted = deleted
	return e
}

// SetCurrency switches the entry to code and converts every item amount and
// secondary payer amount by rates[current]/rates[code]. Shares are left
// alone. An unknown currency leaves the record untouched.
func (e *Entry) SetCurrency(code string, rates core.CurrencyRates) error {
	factor, err := rates.Factor(e.raw.CurrencyCode, code)
	if err != nil {
		return err
	}
	e.raw.CurrencyCode = code
	for i := range e.raw.Items {
		e.raw.Items[i].AM = e.raw.Items[i].AM * factor
	}
	e.raw.SecondaryPayers.Scale(factor)
	return nil
}

// MergeSubItems collapses all items into the first one. The first item takes
// the total amount and, for every profiteer, the sum of share * (total /
// item amount) across items. The result is not renormalized. Items worth
// zero keep their profiteers in the merged map without contributing.
func (e *Entry) MergeSubItems() *Entry {
	prev := e.raw.Items
	if len(prev) == 0 {
		return e
	}

	total := 0.0
	for _, it := range prev {
		total += it.AM
	}

	var order []string
	acc := make(map[string]float64)
	for _, it := range prev {
		for _, sh := range it.P.P.Shares() {
			if _, ok := acc[sh.ID]; !ok {
				order = append(order, sh.ID)
				acc[sh.ID] = 0
			}
			if it.AM == 0 {
				continue
			}
			acc[sh.ID] = acc[sh.ID] + float64(sh.Share*(total/it.AM))
		}
	}

	merged := make([]core.Share, len(order))
	for i, id := range order {
		merged[i] = core.Share{ID: id, Share: acc[id]}
	}
	set, _ := core.NewShareSet(merged...)

	first := prev[0]
	first.AM = total
	first.P.P = set
	e.raw.Items = []Item{first}

	if e.raw.Title == nil && first.T != nil {
		t := *first.T
		e.raw.Title = &t
	}
	return e
}

// AddSubItem appends an item. Existing items are not rebalanced.
func (e *Entry) AddSubItem(title string, amount float64, profiteers core.ShareSet) *Entry {
	e.raw.Items = append(e.raw.Items, NewItem(title, amount, profiteers))
	return e
}

// DeleteSubItem removes item index. Out of range indexes are ignored.
func (e *Entry) DeleteSubItem(index int) *Entry {
	if index < 0 || index >= len(e.raw.Items) {
		return e
	}
	e.raw.Items = append(e.raw.Items[:index:index], e.raw.Items[index+1:]...)
	return e
}

// AddSecondaryPayer records amount paid by id.
func (e *Entry) AddSecondaryPayer(id string, amount float64) *Entry {
	if e.raw.SecondaryPayers == nil {
		e.raw.SecondaryPayers = &core.PayerAmounts{}
	}
	e.raw.SecondaryPayers.Set(id, amount)
	return e
}

func (e *Entry) DeleteSecondaryPayer(id string) *Entry {
	e.raw.SecondaryPayers.Delete(id)
	return e
}

// SetAmount sets the amount of a single-item expense. Split expenses return
// core.ErrSplitExpense.
func (e *Entry) SetAmount(amount float64) error {
	if e.IsSplitExpense() {
		return core.ErrSplitExpense
	}
	if len(e.raw.Items) == 0 {
		return core.ErrItemOutOfRange
	}
	e.raw.Items[0].AM = amount
	return nil
}

func (e *Entry) checkIndex(index int) error {
	if index < 0 || index >= len(e.raw.Items) {
		return core.WithMetadata(core.CodeItemOutOfRange,
			fmt.Sprintf("item %d of %d", index, len(e.raw.Items)),
			map[string]string{"entry_id": e.raw.GlobalID})
	}
	return nil
}

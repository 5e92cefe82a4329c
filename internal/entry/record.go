// Package entry holds the persisted expense record and the adapter that reads
// and mutates it.
package entry

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"splid/internal/core"
)

const (
	opDelete  = "Delete"
	typeDate  = "Date"
	isoLayout = "2006-01-02T15:04:05.000Z"
)

// Record is the persisted expense as exchanged with the storage backend.
// Field names follow the wire format of the upstream service.
type Record struct {
	Type                 string             `json:"__type,omitempty"`
	ClassName            string             `json:"className,omitempty"`
	ObjectID             string             `json:"objectId,omitempty"`
	CreatedAt            string             `json:"createdAt,omitempty"`
	UpdatedAt            string             `json:"updatedAt,omitempty"`
	UpdateID             string             `json:"UpdateID,omitempty"`
	UpdateInstallationID string             `json:"UpdateInstallationID,omitempty"`
	GlobalID             string             `json:"GlobalId"`
	Title                *string            `json:"title,omitempty"`
	PrimaryPayer         string             `json:"primaryPayer"`
	SecondaryPayers      *core.PayerAmounts `json:"secondaryPayers,omitempty"`
	CurrencyCode         string             `json:"currencyCode"`
	Items                []Item             `json:"items"`
	Category             *Category          `json:"category,omitempty"`
	Date                 *DateField         `json:"date,omitempty"`
	CreatedGlobally      DateField          `json:"createdGlobally"`
	IsDeleted            bool               `json:"isDeleted"`
	IsPayment            bool               `json:"isPayment"`
	Group                Pointer            `json:"group"`
}

// Item is one sub-item of an expense.
type Item struct {
	T  *string        `json:"T,omitempty"`
	AM float64        `json:"AM"`
	P  ProfiteerSplit `json:"P"`
}

// ProfiteerSplit is the allocation of an item. SS is the share count for
// share-based splits.
type ProfiteerSplit struct {
	P  core.ShareSet `json:"P"`
	PT int           `json:"PT"`
	SS *float64      `json:"SS,omitempty"`
}

// Category is either a category value or a delete operation.
type Category struct {
	Type         string `json:"type,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	Op           string `json:"__op,omitempty"`
}

// DateField is either a date value or a delete operation.
type DateField struct {
	Type string `json:"__type,omitempty"`
	ISO  string `json:"iso,omitempty"`
	Op   string `json:"__op,omitempty"`
}

// Pointer references another stored object.
type Pointer struct {
	Type      string `json:"__type,omitempty"`
	ClassName string `json:"className,omitempty"`
	ObjectID  string `json:"objectId,omitempty"`
}

func newDate(t time.Time) DateField {
	return DateField{Type: typeDate, ISO: t.UTC().Format(isoLayout)}
}

// Time parses the field. Delete operations and empty values report false.
func (d DateField) Time() (time.Time, bool) {
	if d.Op != "" || d.ISO == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, d.ISO)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Validate checks the fields every stored record must carry.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.GlobalID) == "" {
		return core.ErrEmptyID
	}
	if strings.TrimSpace(r.CurrencyCode) == "" {
		return core.ErrEmptyCurrency
	}
	return nil
}

// ParseRecord decodes a stored record.
func ParseRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, core.Wrap(core.CodeInvalidRecord, "decode entry record", err)
	}
	return &r, nil
}

// Marshal encodes the record in its wire format.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// RecordOptions are the optional fields of NewRecord.
type RecordOptions struct {
	Category     *Category
	CurrencyCode string
	GroupID      string
}

// NewRecord builds a fresh record with a generated id. The currency defaults
// to EUR.
func NewRecord(title, primaryPayer string, items []Item, opts RecordOptions) *Record {
	now := time.Now().UTC()
	stamp := now.Format(isoLayout)
	currency := opts.CurrencyCode
	if currency == "" {
		currency = "EUR"
	}
	r := &Record{
		Type:            "Object",
		ClassName:       "Entry",
		CreatedAt:       stamp,
		UpdatedAt:       stamp,
		GlobalID:        uuid.NewString(),
		PrimaryPayer:    primaryPayer,
		CurrencyCode:    currency,
		Items:           items,
		Category:        opts.Category,
		CreatedGlobally: newDate(now),
		Group:           Pointer{Type: "Pointer", ClassName: "_User", ObjectID: opts.GroupID},
	}
	if title != "" {
		r.Title = &title
	}
	if r.Items == nil {
		r.Items = []Item{}
	}
	return r
}

// NewItem builds an item with an explicit allocation.
func NewItem(title string, amount float64, profiteers core.ShareSet) Item {
	return Item{T: &title, AM: amount, P: ProfiteerSplit{P: profiteers}}
}

func (it Item) clone() Item {
	out := Item{AM: it.AM, P: ProfiteerSplit{P: it.P.P.Clone(), PT: it.P.PT}}
	if it.T != nil {
		t := *it.T
		out.T = &t
	}
	if it.P.SS != nil {
		ss := *it.P.SS
		out.P.SS = &ss
	}
	return out
}

func (r *Record) clone() *Record {
	out := *r
	if r.Title != nil {
		t := *r.Title
		out.Title = &t
	}
	out.SecondaryPayers = r.SecondaryPayers.Clone()
	if r.Category != nil {
		c := *r.Category
		out.Category = &c
	}
	if r.Date != nil {
		d := *r.Date
		out.Date = &d
	}
	out.Items = make([]Item, len(r.Items))
	for i, it := range r.Items {
		out.Items[i] = it.clone()
	}
	return &out
}

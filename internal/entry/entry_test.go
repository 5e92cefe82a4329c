package entry

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"splid/internal/core"
)

const fixture = `{
  "__type": "Object",
  "className": "Entry",
  "GlobalId": "e-1",
  "primaryPayer": "alice",
  "secondaryPayers": {"bob": 4},
  "currencyCode": "EUR",
  "items": [
    {"T": "pizza", "AM": 30, "P": {"P": {"carol": 0.5, "alice": 0.5}, "PT": 0}},
    {"T": "drinks", "AM": 10, "P": {"P": {"bob": 1}, "PT": 0}}
  ],
  "category": {"type": "food", "originalName": "Food"},
  "date": {"__type": "Date", "iso": "2024-03-01T12:00:00.000Z"},
  "createdGlobally": {"__type": "Date", "iso": "2024-03-01T11:00:00.000Z"},
  "isDeleted": false,
  "isPayment": false,
  "group": {"__type": "Pointer", "className": "_User", "objectId": "g-1"}
}`

func mustParse(t *testing.T, data string) *Entry {
	t.Helper()
	e, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return e
}

func shareSet(t *testing.T, shares ...core.Share) core.ShareSet {
	t.Helper()
	set, err := core.NewShareSet(shares...)
	if err != nil {
		t.Fatalf("NewShareSet: %v", err)
	}
	return set
}

func TestParseAndGetters(t *testing.T) {
	e := mustParse(t, fixture)

	if e.ID() != "e-1" || e.PrimaryPayer() != "alice" || e.CurrencyCode() != "EUR" {
		t.Fatalf("unexpected basic fields: %+v", e.Record())
	}
	if e.Amount() != 40 {
		t.Fatalf("expected amount 40, got %v", e.Amount())
	}
	if !e.IsSplitExpense() {
		t.Fatalf("two items should be a split expense")
	}
	if diff := cmp.Diff(&CategoryView{Value: "food", Title: "Food"}, e.Category()); diff != "" {
		t.Fatalf("category mismatch (-want +got):\n%s", diff)
	}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := e.PurchasedDate(); got == nil || !got.Equal(want) {
		t.Fatalf("unexpected purchased date %v", got)
	}
	if got := e.CreatedDate(); !got.Equal(want.Add(-time.Hour)) {
		t.Fatalf("unexpected created date %v", got)
	}
	if diff := cmp.Diff([]core.PayerAmount{{ID: "bob", Amount: 4}}, e.SecondaryPayers()); diff != "" {
		t.Fatalf("payers mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte(`{"items": 3}`))
	if !core.IsCode(err, core.CodeInvalidRecord) {
		t.Fatalf("expected INVALID_RECORD, got %v", err)
	}
}

func TestItemsView(t *testing.T) {
	e := mustParse(t, `{"GlobalId":"x","currencyCode":"EUR","items":[
		{"AM": 90, "P": {"P": {"a": 0.6666666666666666, "b": 0.3333333333333333}, "PT": 1, "SS": 3}}
	]}`)

	items := e.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	a, b, ss := 0.6666666666666666, 0.3333333333333333, 3.0
	if it.NumShares == nil || *it.NumShares != 3 {
		t.Fatalf("expected item numShares 3, got %v", it.NumShares)
	}
	if got := it.Profiteers[0]; got.ID != "a" || got.Amount != a*90 {
		t.Fatalf("unexpected first profiteer %+v", got)
	}
	if n := it.Profiteers[1].NumShares; n == nil || *n != b/(1/ss) {
		t.Fatalf("unexpected numShares %v", n)
	}

	plain := mustParse(t, fixture).Items()
	if plain[0].Profiteers[0].NumShares != nil {
		t.Fatalf("items without SS should not report numShares")
	}
	if diff := cmp.Diff([]string{"carol", "alice"}, []string{plain[0].Profiteers[0].ID, plain[0].Profiteers[1].ID}); diff != "" {
		t.Fatalf("profiteer order mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalKeepsWireShape(t *testing.T) {
	e := mustParse(t, fixture)
	e.SetCategory(nil).SetPurchasedDate(nil)

	out, err := e.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(out)
	for _, want := range []string{
		`"category":{"__op":"Delete"}`,
		`"date":{"__op":"Delete"}`,
		`"P":{"carol":0.5,"alice":0.5}`,
		`"secondaryPayers":{"bob":4}`,
		`"GlobalId":"e-1"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("expected %s in %s", want, s)
		}
	}
	if e.Category() != nil || e.PurchasedDate() != nil {
		t.Fatalf("deleted fields should read as nil")
	}
}

func TestSetProfiteers(t *testing.T) {
	e := mustParse(t, fixture)
	set := shareSet(t, core.Share{ID: "alice", Share: 0.25}, core.Share{ID: "dave", Share: 0.75})

	if err := e.SetProfiteers(1, set); err != nil {
		t.Fatalf("SetProfiteers: %v", err)
	}
	got, err := e.ShareSet(1)
	if err != nil {
		t.Fatalf("ShareSet: %v", err)
	}
	if !got.Equal(set) {
		t.Fatalf("expected %v, got %v", set, got)
	}
	if err := e.SetProfiteers(5, set); !core.IsCode(err, core.CodeItemOutOfRange) {
		t.Fatalf("expected ITEM_OUT_OF_RANGE, got %v", err)
	}
	if _, err := e.ShareSet(-1); !core.IsCode(err, core.CodeItemOutOfRange) {
		t.Fatalf("expected ITEM_OUT_OF_RANGE, got %v", err)
	}
}

func TestSetCurrency(t *testing.T) {
	e := mustParse(t, fixture)
	rates := core.CurrencyRates{"EUR": 1, "USD": 0.5}

	if err := e.SetCurrency("USD", rates); err != nil {
		t.Fatalf("SetCurrency: %v", err)
	}
	if e.CurrencyCode() != "USD" {
		t.Fatalf("currency not updated")
	}
	if e.Record().Items[0].AM != 60 || e.Record().Items[1].AM != 20 {
		t.Fatalf("amounts not converted: %+v", e.Record().Items)
	}
	if got, _ := e.Record().SecondaryPayers.Get("bob"); got != 8 {
		t.Fatalf("payer not converted: %v", got)
	}
	if v, _ := e.Record().Items[0].P.P.Share("carol"); v != 0.5 {
		t.Fatalf("shares must not change, got %v", v)
	}

	before, _ := e.Marshal()
	if err := e.SetCurrency("GBP", rates); !core.IsCode(err, core.CodeUnknownCurrency) {
		t.Fatalf("expected UNKNOWN_CURRENCY, got %v", err)
	}
	after, _ := e.Marshal()
	if string(before) != string(after) {
		t.Fatalf("failed conversion changed the record")
	}
}

func TestMergeSubItems(t *testing.T) {
	e := mustParse(t, fixture)
	e.Record().Title = nil

	e.MergeSubItems()

	items := e.Record().Items
	if len(items) != 1 || items[0].AM != 40 {
		t.Fatalf("unexpected merged items: %+v", items)
	}
	total, pizza, drinks := 40.0, 30.0, 10.0
	half, whole := 0.5, 1.0
	want := []core.Share{
		{ID: "carol", Share: 0 + half*(total/pizza)},
		{ID: "alice", Share: 0 + half*(total/pizza)},
		{ID: "bob", Share: 0 + whole*(total/drinks)},
	}
	if diff := cmp.Diff(want, items[0].P.P.Shares()); diff != "" {
		t.Fatalf("merged shares mismatch (-want +got):\n%s", diff)
	}
	if e.Title() == nil || *e.Title() != "pizza" {
		t.Fatalf("expected title adopted from first item, got %v", e.Title())
	}
}

func TestMergeSubItemsEdgeCases(t *testing.T) {
	empty := New(&Record{GlobalID: "x", CurrencyCode: "EUR"})
	empty.MergeSubItems()
	if len(empty.Record().Items) != 0 {
		t.Fatalf("merging no items should be a no-op")
	}

	e := mustParse(t, `{"GlobalId":"x","title":"kept","currencyCode":"EUR","items":[
		{"T":"a","AM":10,"P":{"P":{"u1":1},"PT":0}},
		{"T":"b","AM":0,"P":{"P":{"u2":1},"PT":0}}
	]}`)
	e.MergeSubItems()
	want := []core.Share{{ID: "u1", Share: 1}, {ID: "u2", Share: 0}}
	if diff := cmp.Diff(want, e.Record().Items[0].P.P.Shares()); diff != "" {
		t.Fatalf("zero amount merge mismatch (-want +got):\n%s", diff)
	}
	if *e.Title() != "kept" {
		t.Fatalf("existing title must be kept")
	}
}

func TestSetAmount(t *testing.T) {
	e := mustParse(t, fixture)
	err := e.SetAmount(5)
	if !errors.Is(err, core.ErrSplitExpense) {
		t.Fatalf("expected split expense error, got %v", err)
	}
	if err.Error() != "INVALID_OPERATION: split expense" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	e.DeleteSubItem(1)
	if err := e.SetAmount(5); err != nil {
		t.Fatalf("SetAmount: %v", err)
	}
	if e.Amount() != 5 {
		t.Fatalf("expected amount 5, got %v", e.Amount())
	}
}

func TestSubItemsAndPayers(t *testing.T) {
	e := mustParse(t, fixture)

	e.AddSubItem("dessert", 12, core.ShareSet{})
	if len(e.Record().Items) != 3 || e.Record().Items[2].AM != 12 {
		t.Fatalf("sub item not appended: %+v", e.Record().Items)
	}
	if v, _ := e.Record().Items[0].P.P.Share("carol"); v != 0.5 {
		t.Fatalf("existing items must not be rebalanced")
	}

	e.DeleteSubItem(10)
	if len(e.Record().Items) != 3 {
		t.Fatalf("out of range delete should be ignored")
	}
	e.DeleteSubItem(0)
	if *e.Record().Items[0].T != "drinks" {
		t.Fatalf("wrong item deleted")
	}

	e.AddSecondaryPayer("dave", 3).DeleteSecondaryPayer("bob")
	if diff := cmp.Diff([]core.PayerAmount{{ID: "dave", Amount: 3}}, e.SecondaryPayers()); diff != "" {
		t.Fatalf("payers mismatch (-want +got):\n%s", diff)
	}

	fresh := New(&Record{GlobalID: "y", CurrencyCode: "EUR"})
	fresh.AddSecondaryPayer("zed", 0)
	if fresh.Record().SecondaryPayers.Len() != 1 {
		t.Fatalf("payer map should be created on demand")
	}
}

func TestCopyIsDeep(t *testing.T) {
	e := mustParse(t, fixture)
	c := e.Copy()

	c.SetTitle("changed").SetIsDeleted(true).AddSecondaryPayer("bob", 99)
	_ = c.SetProfiteers(0, shareSet(t, core.Share{ID: "z", Share: 1}))
	c.Record().Items[1].AM = 1

	orig, _ := e.Marshal()
	var back Record
	if err := json.Unmarshal(orig, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.IsDeleted || back.Items[1].AM != 10 || back.Title != nil {
		t.Fatalf("original mutated through copy: %s", orig)
	}
	if v, _ := back.SecondaryPayers.Get("bob"); v != 4 {
		t.Fatalf("payers shared between copies")
	}
	if !back.Items[0].P.P.Contains("carol") {
		t.Fatalf("shares shared between copies")
	}
}

func TestNewRecord(t *testing.T) {
	r := NewRecord("rent", "alice", []Item{NewItem("rent", 900, core.ShareSet{})}, RecordOptions{GroupID: "g-1"})
	if r.GlobalID == "" || r.CurrencyCode != "EUR" || r.Group.ObjectID != "g-1" {
		t.Fatalf("unexpected record %+v", r)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, ok := r.CreatedGlobally.Time(); !ok {
		t.Fatalf("created date not parseable: %q", r.CreatedGlobally.ISO)
	}
	if err := (&Record{}).Validate(); err == nil {
		t.Fatalf("empty record should not validate")
	}
}

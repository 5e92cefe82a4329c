package core

import (
	"errors"
	"testing"
)

func TestMemberAndGroupValidate(t *testing.T) {
	if err := (Member{ID: "m1"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Member{ID: "  "}).Validate(); !errors.Is(err, ErrEmptyID) {
		t.Fatalf("expected ErrEmptyID, got %v", err)
	}

	good := Group{ID: "g1", CurrencyCode: "EUR"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Group{
		{ID: "", CurrencyCode: "EUR"},
		{ID: "g1", CurrencyCode: ""},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCurrencyRatesFactor(t *testing.T) {
	rates := CurrencyRates{"EUR": 1, "USD": 0.5, "BAD": 0}

	f, err := rates.Factor("EUR", "USD")
	if err != nil || f != 2 {
		t.Fatalf("EUR->USD expected 2, got %v (err=%v)", f, err)
	}
	f, err = rates.Factor("USD", "EUR")
	if err != nil || f != 0.5 {
		t.Fatalf("USD->EUR expected 0.5, got %v (err=%v)", f, err)
	}

	if _, err := rates.Factor("EUR", "GBP"); !IsCode(err, CodeUnknownCurrency) {
		t.Fatalf("expected UNKNOWN_CURRENCY, got %v", err)
	}
	if _, err := rates.Factor("EUR", "BAD"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestActiveMemberIDs(t *testing.T) {
	members := []Member{
		{ID: "a"},
		{ID: "b", IsDeleted: true},
		{ID: "c"},
		{ID: "a"},
	}
	got := ActiveMemberIDs(members)
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestErrorCodes(t *testing.T) {
	if ErrSplitExpense.Error() != "INVALID_OPERATION: split expense" {
		t.Fatalf("unexpected message: %q", ErrSplitExpense.Error())
	}

	cause := errors.New("disk full")
	err := Wrap(CodeInvalidRecord, "save", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if GetCode(err) != CodeInvalidRecord {
		t.Fatalf("unexpected code %s", GetCode(err))
	}
	if GetCode(cause) != CodeUnknown {
		t.Fatalf("plain errors should map to UNKNOWN")
	}
	if !errors.Is(New(CodeInvalidOperation, "other"), ErrSplitExpense) {
		t.Fatalf("errors with the same code should match")
	}
}

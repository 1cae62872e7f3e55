package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/cocoa/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"FarmerID", id.NewFarmerID, "frm_"},
		{"SackID", id.NewSackID, "sack_"},
		{"BagID", id.NewBagID, "bag_"},
		{"BatchID", id.NewBatchID, "bat_"},
		{"WarrantID", id.NewWarrantID, "wr_"},
		{"LenderID", id.NewLenderID, "lnd_"},
		{"BundleID", id.NewBundleID, "bdl_"},
		{"TokenID", id.NewTokenID, "tok_"},
		{"TipID", id.NewTipID, "tip_"},
		{"InvoiceID", id.NewInvoiceID, "inv_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"FarmerID", id.NewFarmerID, id.ParseFarmerID},
		{"SackID", id.NewSackID, id.ParseSackID},
		{"BagID", id.NewBagID, id.ParseBagID},
		{"BatchID", id.NewBatchID, id.ParseBatchID},
		{"WarrantID", id.NewWarrantID, id.ParseWarrantID},
		{"LenderID", id.NewLenderID, id.ParseLenderID},
		{"BundleID", id.NewBundleID, id.ParseBundleID},
		{"TokenID", id.NewTokenID, id.ParseTokenID},
		{"TipID", id.NewTipID, id.ParseTipID},
		{"InvoiceID", id.NewInvoiceID, id.ParseInvoiceID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseSackID rejects bag_", id.NewBagID().String(), id.ParseSackID},
		{"ParseBagID rejects bat_", id.NewBatchID().String(), id.ParseBagID},
		{"ParseBatchID rejects sack_", id.NewSackID().String(), id.ParseBatchID},
		{"ParseLenderID rejects frm_", id.NewFarmerID().String(), id.ParseLenderID},
		{"ParseBundleID rejects inv_", id.NewInvoiceID().String(), id.ParseBundleID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestParseList(t *testing.T) {
	a, b := id.NewBagID(), id.NewBagID()

	got, err := id.ParseList([]string{b.String(), a.String()}, id.PrefixBag)
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}
	if len(got) != 2 || got[0].String() != b.String() || got[1].String() != a.String() {
		t.Errorf("order not preserved: %v", id.Strings(got))
	}

	if _, err := id.ParseList([]string{a.String(), id.NewBatchID().String()}, id.PrefixBag); err == nil {
		t.Error("expected error for mixed prefixes")
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	original := id.NewSackID()
	data, err := original.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText failed: %v", err)
	}

	var restored id.ID
	if unmarshalErr := restored.UnmarshalText(data); unmarshalErr != nil {
		t.Fatalf("UnmarshalText failed: %v", unmarshalErr)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var nilID id.ID
	data, err = nilID.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText(nil) failed: %v", err)
	}
	var restored2 id.ID
	if err := restored2.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText(nil) failed: %v", err)
	}
	if !restored2.IsNil() {
		t.Error("expected nil after round-trip of nil ID")
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewLenderID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var scanned2 id.ID
	if err := scanned2.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of nil")
	}
}

func TestUniqueness(t *testing.T) {
	a := id.NewSackID()
	b := id.NewSackID()
	if a.String() == b.String() {
		t.Errorf("two consecutive NewSackID() calls returned the same ID: %q", a.String())
	}
}

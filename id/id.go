// Package id defines TypeID-based identity types for all cocoa ledger entities.
//
// Every entity uses a single ID struct with a prefix that identifies
// the entity type. IDs are K-sortable (UUIDv7-based), globally unique,
// and URL-safe in the format "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

// Prefix constants for all cocoa ledger entities.
const (
	PrefixFarmer  Prefix = "frm"  // Farmer, including the operator
	PrefixSack    Prefix = "sack" // Delivered sack of raw cocoa
	PrefixBag     Prefix = "bag"  // 63 kg bag
	PrefixBatch   Prefix = "bat"  // 60 MT production batch
	PrefixWarrant Prefix = "wr"   // Warrant receipt
	PrefixLender  Prefix = "lnd"  // Lender
	PrefixBundle  Prefix = "bdl"  // Financing bundle
	PrefixToken   Prefix = "tok"  // Token ledger entry
	PrefixTip     Prefix = "tip"  // Tip
	PrefixInvoice Prefix = "inv"  // Invoice
)

// ID is the primary identifier type for all cocoa ledger entities.
// It wraps a TypeID providing a prefix-qualified, globally unique,
// sortable, URL-safe identifier in the format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// Generator produces a fresh ID for a prefix. New is the default.
type Generator func(Prefix) ID

// Parse parses a TypeID string (e.g., "sack_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}

// MustParse is like Parse but panics on error. Use for hardcoded ID values.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// ParseList parses every string with the expected prefix, stopping at the
// first invalid entry.
func ParseList(ss []string, expected Prefix) ([]ID, error) {
	out := make([]ID, 0, len(ss))
	for _, s := range ss {
		parsed, err := ParseWithPrefix(s, expected)
		if err != nil {
			return nil, err
		}
		out = append(out, parsed)
	}
	return out, nil
}

// Strings renders ids in order.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, v := range ids {
		out[i] = v.String()
	}
	return out
}

// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// FarmerID is a type-safe identifier for farmers (prefix: "frm").
type FarmerID = ID

// SackID is a type-safe identifier for sacks (prefix: "sack").
type SackID = ID

// BagID is a type-safe identifier for bags (prefix: "bag").
type BagID = ID

// BatchID is a type-safe identifier for batches (prefix: "bat").
type BatchID = ID

// WarrantID is a type-safe identifier for warrant receipts (prefix: "wr").
type WarrantID = ID

// LenderID is a type-safe identifier for lenders (prefix: "lnd").
type LenderID = ID

// BundleID is a type-safe identifier for bundles (prefix: "bdl").
type BundleID = ID

// TokenID is a type-safe identifier for token entries (prefix: "tok").
type TokenID = ID

// TipID is a type-safe identifier for tips (prefix: "tip").
type TipID = ID

// InvoiceID is a type-safe identifier for invoices (prefix: "inv").
type InvoiceID = ID

// ──────────────────────────────────────────────────
// Convenience constructors
// ──────────────────────────────────────────────────

// NewFarmerID generates a new unique farmer ID.
func NewFarmerID() ID { return New(PrefixFarmer) }

// NewSackID generates a new unique sack ID.
func NewSackID() ID { return New(PrefixSack) }

// NewBagID generates a new unique bag ID.
func NewBagID() ID { return New(PrefixBag) }

// NewBatchID generates a new unique batch ID.
func NewBatchID() ID { return New(PrefixBatch) }

// NewWarrantID generates a new unique warrant receipt ID.
func NewWarrantID() ID { return New(PrefixWarrant) }

// NewLenderID generates a new unique lender ID.
func NewLenderID() ID { return New(PrefixLender) }

// NewBundleID generates a new unique bundle ID.
func NewBundleID() ID { return New(PrefixBundle) }

// NewTokenID generates a new unique token entry ID.
func NewTokenID() ID { return New(PrefixToken) }

// NewTipID generates a new unique tip ID.
func NewTipID() ID { return New(PrefixTip) }

// NewInvoiceID generates a new unique invoice ID.
func NewInvoiceID() ID { return New(PrefixInvoice) }

// ──────────────────────────────────────────────────
// Convenience parsers
// ──────────────────────────────────────────────────

// ParseFarmerID parses a string and validates the "frm" prefix.
func ParseFarmerID(s string) (ID, error) { return ParseWithPrefix(s, PrefixFarmer) }

// ParseSackID parses a string and validates the "sack" prefix.
func ParseSackID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSack) }

// ParseBagID parses a string and validates the "bag" prefix.
func ParseBagID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBag) }

// ParseBatchID parses a string and validates the "bat" prefix.
func ParseBatchID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBatch) }

// ParseWarrantID parses a string and validates the "wr" prefix.
func ParseWarrantID(s string) (ID, error) { return ParseWithPrefix(s, PrefixWarrant) }

// ParseLenderID parses a string and validates the "lnd" prefix.
func ParseLenderID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLender) }

// ParseBundleID parses a string and validates the "bdl" prefix.
func ParseBundleID(s string) (ID, error) { return ParseWithPrefix(s, PrefixBundle) }

// ParseTokenID parses a string and validates the "tok" prefix.
func ParseTokenID(s string) (ID, error) { return ParseWithPrefix(s, PrefixToken) }

// ParseTipID parses a string and validates the "tip" prefix.
func ParseTipID(s string) (ID, error) { return ParseWithPrefix(s, PrefixTip) }

// ParseInvoiceID parses a string and validates the "inv" prefix.
func ParseInvoiceID(s string) (ID, error) { return ParseWithPrefix(s, PrefixInvoice) }

// ParseAny parses a string into an ID without type checking the prefix.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer for database storage.
// Returns nil for the Nil ID so that optional foreign key columns store NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}

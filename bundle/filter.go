package bundle

import (
	"fmt"
	"strings"
)

// FilterKey is a farmer attribute a bundle can be narrowed by.
type FilterKey string

const (
	FilterNone    FilterKey = ""
	FilterCountry FilterKey = "country"
	FilterCity    FilterKey = "city"
	FilterGender  FilterKey = "gender"
	// FilterName matches a case-insensitive substring of the full name.
	FilterName FilterKey = "name"
)

// Filter narrows eligible sacks by their farmer.
type Filter struct {
	Key   FilterKey `json:"key,omitempty"`
	Value string    `json:"value,omitempty"`
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool { return f.Key == FilterNone }

// Valid reports whether the key is one of the supported predicates.
func (k FilterKey) Valid() bool {
	switch k {
	case FilterNone, FilterCountry, FilterCity, FilterGender, FilterName:
		return true
	}
	return false
}

// ParseFilterKey normalises a user supplied key. "farmer_name" is
// accepted as an alias of "name".
func ParseFilterKey(s string) (FilterKey, error) {
	k := FilterKey(strings.ToLower(strings.TrimSpace(s)))
	if k == "farmer_name" {
		k = FilterName
	}
	if !k.Valid() {
		return FilterNone, fmt.Errorf("unsupported filter key %q", s)
	}
	return k, nil
}

func (f Filter) String() string {
	if f.IsZero() {
		return "all"
	}
	return fmt.Sprintf("%s=%s", f.Key, f.Value)
}

package bundle

import (
	"testing"

	"github.com/xraph/cocoa/types"
)

func TestCoverage(t *testing.T) {
	tests := []struct {
		name          string
		total, funded int64
		want          Status
	}{
		{"nothing funded", 300000, 0, StatusUnfunded},
		{"zero value bundle", 0, 5000, StatusUnfunded},
		{"half funded", 300000, 150000, StatusPartiallyFunded},
		{"exactly funded", 300000, 300000, StatusFunded},
		{"over funded", 300000, 400000, StatusFunded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coverage(types.NGN(tt.total), types.NGN(tt.funded))
			if got != tt.want {
				t.Errorf("Coverage(%d, %d): got %s, want %s", tt.total, tt.funded, got, tt.want)
			}
		})
	}
}

func TestParseFilterKey(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterKey
		wantErr bool
	}{
		{"", FilterNone, false},
		{"Country", FilterCountry, false},
		{" city ", FilterCity, false},
		{"gender", FilterGender, false},
		{"farmer_name", FilterName, false},
		{"name", FilterName, false},
		{"warehouse", FilterNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilterKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFilterKey(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFilterKey(%q): got %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

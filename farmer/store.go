package farmer

import (
	"strings"

	"github.com/xraph/cocoa/id"
)

// ListOpts narrows a farmer listing. Empty fields match everything.
type ListOpts struct {
	IDs          []id.FarmerID
	Country      string
	City         string
	Gender       string
	NameContains string
	Limit        int
	Offset       int
}

// Matches reports whether f satisfies every non-empty field of opts.
func (o ListOpts) Matches(f *Farmer) bool {
	if o.Country != "" && f.Country != o.Country {
		return false
	}
	if o.City != "" && f.City != o.City {
		return false
	}
	if o.Gender != "" && f.Gender != o.Gender {
		return false
	}
	if o.NameContains != "" && !strings.Contains(strings.ToLower(f.Name()), strings.ToLower(o.NameContains)) {
		return false
	}
	if len(o.IDs) > 0 {
		for _, want := range o.IDs {
			if want.String() == f.ID.String() {
				return true
			}
		}
		return false
	}
	return true
}

package farmer

import (
	"strings"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Farmer is a cocoa producer. The operator is a farmer too: it receives
// the residual of every settlement.
type Farmer struct {
	types.Entity
	ID        id.FarmerID `json:"id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Country   string      `json:"country,omitempty"`
	City      string      `json:"city,omitempty"`
	Gender    string      `json:"gender,omitempty"`
	Operator  bool        `json:"operator"`
}

// Name returns "first last", trimmed.
func (f *Farmer) Name() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

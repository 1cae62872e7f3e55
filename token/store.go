package token

import "github.com/xraph/cocoa/id"

// ListOpts narrows a token history. Entries come back oldest first.
type ListOpts struct {
	FarmerID id.FarmerID
	Kind     Kind
	Limit    int
	Offset   int
}

package tip

import "github.com/xraph/cocoa/id"

// ListOpts narrows a tip listing.
type ListOpts struct {
	FarmerID id.FarmerID
	Limit    int
	Offset   int
}

package sack

import "github.com/xraph/cocoa/id"

// ListOpts narrows a sack listing.
type ListOpts struct {
	FarmerID id.FarmerID
	IDs      []id.SackID
	Limit    int
	Offset   int
}

package bag

import "github.com/xraph/cocoa/id"

// ListOpts narrows a bag listing.
type ListOpts struct {
	IDs []id.BagID
	// SackID keeps only bags holding part of this sack.
	SackID id.SackID
	// Unbatched keeps only bags that belong to no batch.
	Unbatched bool
	Limit     int
	Offset    int
}

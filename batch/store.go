package batch

import "github.com/xraph/cocoa/id"

// ListOpts narrows a batch listing.
type ListOpts struct {
	IDs []id.BatchID
	// BagID keeps only the batch holding this bag.
	BagID  id.BagID
	Limit  int
	Offset int
}

package bundle

import "github.com/xraph/cocoa/id"

// ListOpts narrows a bundle listing.
type ListOpts struct {
	// SackIDs keeps bundles holding any of these sacks.
	SackIDs []id.SackID
	Status  Status
	Limit   int
	Offset  int
}

package lender

// ListOpts narrows a lender listing.
type ListOpts struct {
	WalletAddress string
	Limit         int
	Offset        int
}

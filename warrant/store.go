package warrant

// ListOpts narrows a receipt listing.
type ListOpts struct {
	Type   Type
	Limit  int
	Offset int
}

package invoice

type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}

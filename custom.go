package qweave

/*
NewCustomState creates a user-defined subsystem of the given dimension. The
initial state is a Label, Vector or Matrix representation of matching size.
*/
func NewCustomState(dim int, initial Representation, opts ...StateOption) (*State, error) {
	return newState(KindCustom, dim, initial, opts...)
}

package obdict

// Tuple is the plain-data form of a fixed-arity heterogeneous tuple. Loading
// a tuple descriptor produces a Tuple with one element per component.
type Tuple []any

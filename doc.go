// Package obdict converts Go values to plain nested data and back, driven by
// a registry of per-type converters instead of per-field code.
//
// Plain data is what a JSON or YAML decoder produces: map[string]any, []any,
// Tuple and primitives.
//
// - Type descriptors (*Type) name the shape of data: atomic Go types or the
// interned parametric containers seq[T], map[K,V] and tuple[T1,...,Tn].
// - A Registry maps exact descriptors to converters; Dump and Load dispatch on
// the runtime type and the requested descriptor respectively.
// - RegisterConverters picks converters per type: explicit options first, then
// ToDict/FromDict methods, then synthesis from the struct's Field Table.
// - Errors are typed (UnsupportedTypeError, ArityMismatchError, ...) and carry
// a JSON Pointer to the failing value.
//
// Design policy:
// - Keep only public APIs in the root package; format boundaries live under
// codec/, schema export under jsonschema/ and the value helpers under model/.
// - Conversion never recovers: the first failure aborts the whole call.
//
// Typical usage:
//
//	type Pet struct {
//		Name string `obdict:"name"`
//		Age  int    `obdict:"age"`
//	}
//
//	obdict.MustRegister[Pet](nil)
//	data, err := obdict.Dump(Pet{Name: "Whiskers", Age: 2})
//	pet, err := obdict.LoadAs[Pet](nil, map[string]any{"name": "Tiger", "age": 4})
//	pets, err := obdict.Load(obdict.SeqOf(obdict.Of[Pet]()), []any{data})
package obdict

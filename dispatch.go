package obdict

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// Dump converts v into plain data using the default registry.
func Dump(v any) (any, error) { return Default().Dump(v) }

// Load converts data into a value of t using the default registry.
func Load(t *Type, data any) (any, error) { return Default().Load(t, data) }

// LoadAs loads data into T. nil r means Default().
func LoadAs[T any](r *Registry, data any) (T, error) {
	var zero T
	out, err := orDefault(r).Load(Of[T](), data)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	v, ok := out.(T)
	if !ok {
		return zero, &ConversionError{Path: "/", Type: Of[T]().String(), Err: fmt.Errorf("loaded %T", out)}
	}
	return v, nil
}

// Dump converts v into plain data: map[string]any, []any, Tuple and
// primitives.
func (r *Registry) Dump(v any) (any, error) {
	return r.NewEncoder().Dump(v)
}

// Load converts plain data into a value of t's Go type.
func (r *Registry) Load(t *Type, data any) (any, error) {
	return r.NewDecoder().Load(t, data)
}

// ---- Encoder ----

// Encoder carries the state of one dump call: the registry, the path of the
// current value, the nesting depth and the containers being dumped.
type Encoder struct {
	reg     *Registry
	path    pointer
	depth   int
	visited map[uintptr]string
}

// NewEncoder starts a dump at the root path.
func (r *Registry) NewEncoder() *Encoder {
	return &Encoder{reg: r}
}

func (e *Encoder) Registry() *Registry { return e.reg }

// Path is the JSON Pointer of the value being dumped.
func (e *Encoder) Path() string { return e.path.String() }

// Dump converts a nested value at the current path.
func (e *Encoder) Dump(v any) (any, error) { return e.dump(v) }

// DumpField converts a nested value under the member name.
func (e *Encoder) DumpField(name string, v any) (any, error) {
	saved := e.path
	e.path = e.path.field(name)
	out, err := e.dump(v)
	e.path = saved
	return out, err
}

// DumpIndex converts a nested value under the element index.
func (e *Encoder) DumpIndex(i int, v any) (any, error) {
	saved := e.path
	e.path = e.path.index(i)
	out, err := e.dump(v)
	e.path = saved
	return out, err
}

func (e *Encoder) dump(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	e.depth++
	defer func() { e.depth-- }()
	if e.depth > e.reg.maxDepth {
		return nil, &MaxDepthExceededError{Path: e.Path(), Limit: e.reg.maxDepth}
	}

	rt := reflect.TypeOf(v)
	t := Describe(rt)
	if fn, ok := e.reg.Serializer(t); ok {
		out, err := fn(e, v)
		if err != nil {
			return nil, e.wrap(t, err)
		}
		return out, nil
	}
	return e.dumpKind(t, reflect.ValueOf(v))
}

// dumpKind applies the built-in container and scalar rules.
func (e *Encoder) dumpKind(t *Type, rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		leave, err := e.enter(rv.Pointer(), t)
		if err != nil {
			return nil, err
		}
		defer leave()
		return e.dump(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Len() > 0 {
			leave, err := e.enter(rv.Pointer(), t)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		return e.dumpElems(rv)
	case reflect.Array:
		return e.dumpElems(rv)
	case reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
		if rv.Len() > 0 {
			leave, err := e.enter(rv.Pointer(), t)
			if err != nil {
				return nil, err
			}
			defer leave()
		}
		return e.dumpMap(t, rv)
	}
	if bt, ok := basicType(rv.Kind()); ok && rv.Type() != bt && e.reg.namedScalars {
		// named scalar, e.g. type Celsius float64
		return e.dump(rv.Convert(bt).Interface())
	}
	return nil, &UnsupportedTypeError{Path: e.Path(), Type: t.String(), Op: "dump"}
}

func (e *Encoder) dumpElems(rv reflect.Value) (any, error) {
	out := make([]any, rv.Len())
	for i := range out {
		v, err := e.DumpIndex(i, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *Encoder) dumpMap(t *Type, rv reflect.Value) (any, error) {
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := e.dumpKey(t, iter.Key())
		if err != nil {
			return nil, err
		}
		if _, dup := out[k]; dup {
			return nil, &ConversionError{Path: e.path.field(k).String(), Type: t.String(), Err: fmt.Errorf("two keys render as %q", k)}
		}
		v, err := e.DumpField(k, iter.Value().Interface())
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// dumpKey renders a map key as a member name. Keys are dumped first so enum
// and named keys follow their converters.
func (e *Encoder) dumpKey(t *Type, k reflect.Value) (string, error) {
	kv, err := e.dump(k.Interface())
	if err != nil {
		return "", err
	}
	switch x := kv.(type) {
	case string:
		return x, nil
	case bool:
		return strconv.FormatBool(x), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return "", &UnsupportedTypeError{Path: e.Path(), Type: fmt.Sprintf("map key %T of %s", kv, t), Op: "dump"}
}

// enter marks a container address as being dumped on the current branch.
func (e *Encoder) enter(addr uintptr, t *Type) (func(), error) {
	if e.visited == nil {
		e.visited = map[uintptr]string{}
	}
	if first, ok := e.visited[addr]; ok {
		return nil, &CycleError{Path: e.Path(), Type: t.String(), First: first}
	}
	e.visited[addr] = e.Path()
	return func() { delete(e.visited, addr) }, nil
}

func (e *Encoder) wrap(t *Type, err error) error {
	return wrapConverterError(e.Path(), t, err)
}

// ---- Decoder ----

// Decoder carries the state of one load call.
type Decoder struct {
	reg   *Registry
	path  pointer
	depth int
}

// NewDecoder starts a load at the root path.
func (r *Registry) NewDecoder() *Decoder {
	return &Decoder{reg: r}
}

func (d *Decoder) Registry() *Registry { return d.reg }

// Path is the JSON Pointer of the data being loaded.
func (d *Decoder) Path() string { return d.path.String() }

// Load converts nested data at the current path.
func (d *Decoder) Load(t *Type, data any) (any, error) { return d.load(t, data) }

// LoadField converts nested data under the member name.
func (d *Decoder) LoadField(name string, t *Type, data any) (any, error) {
	saved := d.path
	d.path = d.path.field(name)
	out, err := d.load(t, data)
	d.path = saved
	return out, err
}

// LoadIndex converts nested data under the element index.
func (d *Decoder) LoadIndex(i int, t *Type, data any) (any, error) {
	saved := d.path
	d.path = d.path.index(i)
	out, err := d.load(t, data)
	d.path = saved
	return out, err
}

func (d *Decoder) load(t *Type, data any) (any, error) {
	if t == nil {
		return nil, &MalformedTypeDescriptorError{Descriptor: "<nil>", Reason: "nil descriptor"}
	}
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > d.reg.maxDepth {
		return nil, &MaxDepthExceededError{Path: d.Path(), Limit: d.reg.maxDepth}
	}

	switch t.kind {
	case KindSeq:
		return d.loadSeq(t, data)
	case KindMap:
		return d.loadMap(t, data)
	case KindTuple:
		return d.loadTuple(t, data)
	}
	if fn, ok := d.reg.Deserializer(t); ok {
		out, err := fn(d, t, data)
		if err != nil {
			return nil, d.wrap(t, err)
		}
		return out, nil
	}
	return d.loadKind(t, data)
}

func (d *Decoder) loadSeq(t *Type, data any) (any, error) {
	if data == nil {
		return reflect.Zero(t.goType).Interface(), nil
	}
	src, ok := sequenceValue(data)
	if !ok {
		return nil, d.mismatch(t, data, "sequence")
	}
	out := reflect.MakeSlice(t.goType, src.Len(), src.Len())
	if err := d.fillElems(t.args[0], src, out); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func (d *Decoder) fillElems(elem *Type, src, dst reflect.Value) error {
	for i := 0; i < src.Len(); i++ {
		v, err := d.LoadIndex(i, elem, src.Index(i).Interface())
		if err != nil {
			return err
		}
		if err := d.assignIndexed(i, dst.Index(i), v); err != nil {
			return err
		}
	}
	return nil
}

func (d *Decoder) loadMap(t *Type, data any) (any, error) {
	if data == nil {
		return reflect.Zero(t.goType).Interface(), nil
	}
	src := reflect.ValueOf(data)
	if src.Kind() != reflect.Map {
		return nil, d.mismatch(t, data, "mapping")
	}
	out := reflect.MakeMapWithSize(t.goType, src.Len())
	if err := d.fillMap(t.args[0], t.args[1], src, out); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

func (d *Decoder) fillMap(kt, vt *Type, src, dst reflect.Value) error {
	iter := src.MapRange()
	for iter.Next() {
		rawKey := iter.Key().Interface()
		name := fmt.Sprint(rawKey)
		k, err := d.LoadField(name, kt, rawKey)
		if err != nil {
			return err
		}
		v, err := d.LoadField(name, vt, iter.Value().Interface())
		if err != nil {
			return err
		}
		at := d.path.field(name).String()
		kv, err := convertTo(at, dst.Type().Key(), k)
		if err != nil {
			return err
		}
		vv, err := convertTo(at, dst.Type().Elem(), v)
		if err != nil {
			return err
		}
		dst.SetMapIndex(kv, vv)
	}
	return nil
}

func (d *Decoder) loadTuple(t *Type, data any) (any, error) {
	src, ok := sequenceValue(data)
	if !ok {
		return nil, d.mismatch(t, data, "sequence")
	}
	if src.Len() != len(t.args) {
		return nil, &ArityMismatchError{Path: d.Path(), Type: t.String(), Want: len(t.args), Got: src.Len()}
	}
	out := make(Tuple, len(t.args))
	for i, at := range t.args {
		v, err := d.LoadIndex(i, at, src.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// loadKind applies the built-in rules keyed on the Go kind of an atomic
// descriptor without an exact entry.
func (d *Decoder) loadKind(t *Type, data any) (any, error) {
	rt := t.goType
	switch rt.Kind() {
	case reflect.Pointer:
		if data == nil {
			return reflect.Zero(rt).Interface(), nil
		}
		v, err := d.load(Describe(rt.Elem()), data)
		if err != nil {
			return nil, err
		}
		p := reflect.New(rt.Elem())
		if err := d.assign(p.Elem(), v); err != nil {
			return nil, err
		}
		return p.Interface(), nil
	case reflect.Slice:
		if data == nil {
			return reflect.Zero(rt).Interface(), nil
		}
		src, ok := sequenceValue(data)
		if !ok {
			return nil, d.mismatch(t, data, "sequence")
		}
		out := reflect.MakeSlice(rt, src.Len(), src.Len())
		if err := d.fillElems(Describe(rt.Elem()), src, out); err != nil {
			return nil, err
		}
		return out.Interface(), nil
	case reflect.Array:
		src, ok := sequenceValue(data)
		if !ok {
			return nil, d.mismatch(t, data, "sequence")
		}
		if src.Len() != rt.Len() {
			return nil, &ArityMismatchError{Path: d.Path(), Type: t.String(), Want: rt.Len(), Got: src.Len()}
		}
		out := reflect.New(rt).Elem()
		if err := d.fillElems(Describe(rt.Elem()), src, out); err != nil {
			return nil, err
		}
		return out.Interface(), nil
	case reflect.Map:
		if data == nil {
			return reflect.Zero(rt).Interface(), nil
		}
		src := reflect.ValueOf(data)
		if src.Kind() != reflect.Map {
			return nil, d.mismatch(t, data, "mapping")
		}
		out := reflect.MakeMapWithSize(rt, src.Len())
		if err := d.fillMap(Describe(rt.Key()), Describe(rt.Elem()), src, out); err != nil {
			return nil, err
		}
		return out.Interface(), nil
	}
	if bt, ok := basicType(rt.Kind()); ok && rt != bt && d.reg.namedScalars {
		v, err := d.load(Atomic(bt), data)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(v).Convert(rt).Interface(), nil
	}
	return nil, &UnsupportedTypeError{Path: d.Path(), Type: t.String(), Op: "load"}
}

func (d *Decoder) assignIndexed(i int, dst reflect.Value, v any) error {
	cv, err := convertTo(d.path.index(i).String(), dst.Type(), v)
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}

// assign stores a loaded value into dst. Loaded values normally already have
// dst's type; converters returning a compatible type are converted.
func (d *Decoder) assign(dst reflect.Value, v any) error {
	cv, err := convertTo(d.Path(), dst.Type(), v)
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}

func convertTo(path string, rt reflect.Type, v any) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(rt), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(rt) {
		return rv, nil
	}
	if rt.Kind() == reflect.Pointer && rv.Type().AssignableTo(rt.Elem()) {
		p := reflect.New(rt.Elem())
		p.Elem().Set(rv)
		return p, nil
	}
	if convertible(rv.Type(), rt) {
		return rv.Convert(rt), nil
	}
	return reflect.Value{}, &ConversionError{Path: path, Type: typeName(rt), Err: fmt.Errorf("cannot assign %T", v)}
}

// convertible allows conversions between types of the same kind family only,
// never the int-to-string style conversions reflect permits.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	return kindFamily(from.Kind()) == kindFamily(to.Kind())
}

func kindFamily(k reflect.Kind) int {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return 1
	case reflect.String:
		return 2
	case reflect.Bool:
		return 3
	}
	return 10 + int(k)
}

func (d *Decoder) mismatch(t *Type, data any, want string) error {
	return &ConversionError{Path: d.Path(), Type: t.String(), Err: fmt.Errorf("expected %s, got %T", want, data)}
}

func (d *Decoder) wrap(t *Type, err error) error {
	return wrapConverterError(d.Path(), t, err)
}

func wrapConverterError(path string, t *Type, err error) error {
	var l located
	if errors.As(err, &l) {
		return err
	}
	var c Coded
	if errors.As(err, &c) {
		// path-less package errors (malformed descriptors, unbound fields)
		return err
	}
	return &ConversionError{Path: path, Type: t.String(), Err: err}
}

func sequenceValue(data any) (reflect.Value, bool) {
	if data == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(data)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv, true
	}
	return reflect.Value{}, false
}

var basicTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.String:  reflect.TypeFor[string](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
}

func basicType(k reflect.Kind) (reflect.Type, bool) {
	bt, ok := basicTypes[k]
	return bt, ok
}

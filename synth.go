package obdict

import (
	"fmt"
	"reflect"
)

// FieldStore backs Field Table entries that are not struct fields, such as
// names introduced with Adjustments.Add. It is implemented on *T.
type FieldStore interface {
	GetField(name string) (any, bool)
	SetField(name string, v any) error
}

// FieldDefaulter supplies class-level defaults copied onto a value when a
// name is absent from the input. It is called once per load.
type FieldDefaulter interface {
	FieldDefaults() map[string]any
}

// Initializer runs after zero-value construction during default
// deserialization. An error aborts the load with a FieldConstructionError.
type Initializer interface {
	Init() error
}

var (
	fieldStoreType  = reflect.TypeFor[FieldStore]()
	initializerType = reflect.TypeFor[Initializer]()
)

type fieldBinding struct {
	name  string
	typ   *Type
	index []int // nil when the entry lives in the FieldStore
}

// structBinding resolves every Field Table entry of a struct type to storage.
type structBinding struct {
	rt     reflect.Type
	table  *FieldTable
	fields []fieldBinding
}

// bind returns the cached binding of rt, building it from the Field Table.
func (r *Registry) bind(rt reflect.Type) (*structBinding, error) {
	r.fieldMu.RLock()
	b, ok := r.bindings[rt]
	r.fieldMu.RUnlock()
	if ok {
		return b, nil
	}
	ft, err := r.FieldTable(rt)
	if err != nil {
		return nil, err
	}
	b, err = newStructBinding(rt, ft)
	if err != nil {
		return nil, err
	}
	r.fieldMu.Lock()
	defer r.fieldMu.Unlock()
	if cached, ok := r.bindings[rt]; ok {
		return cached, nil
	}
	r.bindings[rt] = b
	return b, nil
}

func newStructBinding(rt reflect.Type, ft *FieldTable) (*structBinding, error) {
	byName := fieldIndexes(rt)
	store := reflect.PointerTo(rt).Implements(fieldStoreType)

	b := &structBinding{rt: rt, table: ft}
	for _, f := range ft.fields {
		idx, ok := byName[f.Name]
		if ok {
			st := rt.FieldByIndex(idx).Type
			if !storable(f.Type.GoType(), st) {
				if !store {
					return nil, &UnboundFieldError{Type: typeName(rt), Field: f.Name, Reason: fmt.Sprintf("%s does not fit field of type %s", f.Type, st)}
				}
				idx = nil
			}
		} else if !store {
			return nil, &UnboundFieldError{Type: typeName(rt), Field: f.Name, Reason: "no struct field and no FieldStore"}
		}
		b.fields = append(b.fields, fieldBinding{name: f.Name, typ: f.Type, index: idx})
	}
	return b, nil
}

// fieldIndexes maps each key to the index path of its shallowest field.
// Keys that Go leaves ambiguous at one depth bind to the first field met in
// a derived-first walk of the embedded structs, in declaration order.
func fieldIndexes(rt reflect.Type) map[string][]int {
	byName := map[string][]int{}
	onPath := map[reflect.Type]bool{}
	var walk func(t reflect.Type, prefix []int)
	walk = func(t reflect.Type, prefix []int) {
		if onPath[t] {
			return
		}
		onPath[t] = true
		defer delete(onPath, t)
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			idx := append(append([]int(nil), prefix...), i)
			if isEmbeddedStruct(sf) {
				// reflection cannot allocate unexported embedded pointers
				if sf.Type.Kind() == reflect.Pointer && !sf.IsExported() {
					continue
				}
				walk(indirectType(sf.Type), idx)
				continue
			}
			if !sf.IsExported() || sf.Name == "_" {
				continue
			}
			name := ResolveStructKey(sf)
			if name == "-" {
				continue
			}
			if prev, ok := byName[name]; ok && len(prev) <= len(idx) {
				continue
			}
			byName[name] = idx
		}
	}
	walk(rt, nil)
	return byName
}

// storable reports whether values loaded for a descriptor's Go type can be
// stored in a field of type field.
func storable(loaded, field reflect.Type) bool {
	switch {
	case loaded.AssignableTo(field), convertible(loaded, field):
		return true
	case field.Kind() == reflect.Pointer && loaded.AssignableTo(field.Elem()):
		return true
	}
	return false
}

// fieldOf reads a possibly promoted field; ok is false when a nil embedded
// pointer is on the path.
func fieldOf(v reflect.Value, index []int) (reflect.Value, bool) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}

// fieldForSet walks to a promoted field, allocating nil embedded pointers.
func fieldForSet(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

// SynthesizeConverters derives the default serializer and deserializer of a
// struct type from its Field Table. Entries are bound eagerly, so a table
// name without storage fails here with an UnboundFieldError.
func (r *Registry) SynthesizeConverters(rt reflect.Type) (SerializeFunc, DeserializeFunc, error) {
	if _, err := r.bind(rt); err != nil {
		return nil, nil, err
	}
	ser := func(enc *Encoder, v any) (any, error) {
		b, err := enc.Registry().bind(rt)
		if err != nil {
			return nil, err
		}
		return b.serialize(enc, v)
	}
	de := func(dec *Decoder, t *Type, data any) (any, error) {
		b, err := dec.Registry().bind(rt)
		if err != nil {
			return nil, err
		}
		return b.deserialize(dec, data)
	}
	r.log.V(1).Info("synthesized converters", "type", typeName(rt))
	return ser, de, nil
}

func (b *structBinding) serialize(enc *Encoder, v any) (any, error) {
	rv := reflect.ValueOf(v)
	if rv.Type() != b.rt {
		return nil, fmt.Errorf("expected %s, got %T", b.rt, v)
	}
	var store FieldStore
	out := make(map[string]any, len(b.fields))
	for _, f := range b.fields {
		var val any
		if f.index != nil {
			fv, ok := fieldOf(rv, f.index)
			if !ok || (isNillable(fv.Kind()) && fv.IsNil()) {
				continue
			}
			val = fv.Interface()
		} else {
			if store == nil {
				store = addressable(rv).Interface().(FieldStore)
			}
			x, ok := store.GetField(f.name)
			if !ok {
				continue
			}
			val = x
		}
		d, err := enc.DumpField(f.name, val)
		if err != nil {
			return nil, err
		}
		out[f.name] = d
	}
	return out, nil
}

func (b *structBinding) deserialize(dec *Decoder, data any) (any, error) {
	src := reflect.ValueOf(data)
	if data == nil || src.Kind() != reflect.Map {
		return nil, fmt.Errorf("expected mapping, got %T", data)
	}
	p, err := construct(dec, b.rt)
	if err != nil {
		return nil, err
	}
	var defaults map[string]any
	if d, ok := p.Interface().(FieldDefaulter); ok {
		defaults = d.FieldDefaults()
	}

	for _, f := range b.fields {
		raw, present := mapEntry(src, f.name)
		var val any
		switch {
		case present:
			v, err := dec.LoadField(f.name, f.typ, raw)
			if err != nil {
				return nil, err
			}
			val = v
		default:
			d, ok := defaults[f.name]
			if !ok {
				continue
			}
			val = d
		}
		if err := b.set(dec, p, f, val); err != nil {
			return nil, err
		}
	}
	return p.Elem().Interface(), nil
}

func (b *structBinding) set(dec *Decoder, p reflect.Value, f fieldBinding, val any) error {
	at := dec.path.field(f.name).String()
	if f.index == nil {
		if err := p.Interface().(FieldStore).SetField(f.name, val); err != nil {
			return &ConversionError{Path: at, Type: f.typ.String(), Err: err}
		}
		return nil
	}
	dst := fieldForSet(p.Elem(), f.index)
	cv, err := convertTo(at, dst.Type(), val)
	if err != nil {
		return err
	}
	dst.Set(cv)
	return nil
}

// construct allocates a zero T and runs its Initializer.
func construct(dec *Decoder, rt reflect.Type) (p reflect.Value, err error) {
	switch rt.Kind() {
	case reflect.Interface, reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Invalid:
		return reflect.Value{}, &FieldConstructionError{Path: dec.Path(), Type: typeName(rt), Err: fmt.Errorf("%s values have no zero-argument constructor", rt.Kind())}
	}
	p = reflect.New(rt)
	if !reflect.PointerTo(rt).Implements(initializerType) {
		return p, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = &FieldConstructionError{Path: dec.Path(), Type: typeName(rt), Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	if ierr := p.Interface().(Initializer).Init(); ierr != nil {
		return reflect.Value{}, &FieldConstructionError{Path: dec.Path(), Type: typeName(rt), Err: ierr}
	}
	return p, nil
}

// mapEntry looks up a member name in any Go map with string or interface keys.
func mapEntry(src reflect.Value, name string) (any, bool) {
	if m, ok := src.Interface().(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	kt := src.Type().Key()
	var k reflect.Value
	switch kt.Kind() {
	case reflect.String:
		k = reflect.ValueOf(name).Convert(kt)
	case reflect.Interface:
		k = reflect.New(kt).Elem()
		k.Set(reflect.ValueOf(name))
	default:
		return nil, false
	}
	v := src.MapIndex(k)
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

// addressable returns a pointer to a copy of rv.
func addressable(rv reflect.Value) reflect.Value {
	p := reflect.New(rv.Type())
	p.Elem().Set(rv)
	return p
}

// FieldValue is one bound Field Table entry of a value.
type FieldValue struct {
	Name  string
	Type  *Type
	Value any
	// Set is false for nil nillable fields and FieldStore misses.
	Set bool
}

// FieldValues lists v's Field Table entries in table order. v may be a struct
// or a pointer to one.
func (r *Registry) FieldValues(v any) ([]FieldValue, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("obdict: FieldValues of nil %T", v)
		}
		rv = rv.Elem()
	}
	b, err := r.bind(rv.Type())
	if err != nil {
		return nil, err
	}
	var store FieldStore
	out := make([]FieldValue, 0, len(b.fields))
	for _, f := range b.fields {
		fv := FieldValue{Name: f.name, Type: f.typ}
		if f.index != nil {
			x, ok := fieldOf(rv, f.index)
			if ok {
				fv.Value = x.Interface()
				fv.Set = !(isNillable(x.Kind()) && x.IsNil())
			}
		} else {
			if store == nil {
				store = addressable(rv).Interface().(FieldStore)
			}
			fv.Value, fv.Set = store.GetField(f.name)
		}
		out = append(out, fv)
	}
	return out, nil
}

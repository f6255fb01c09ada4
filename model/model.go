// Package model adds value helpers on top of a Registry for struct types
// whose converters come from their Field Table: a keyword constructor,
// field-wise equality, content hashing and readable string forms.
//
//	pets, _ := model.Define[Pet](nil)
//	p, _ := pets.New(map[string]any{"name": "Whiskers", "age": 2})
//	pets.String(p) // Pet(age=2, name=Whiskers)
//	pets.Repr(p)   // {"age":2,"name":"Whiskers"}
package model

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/reoring/obdict"
	"github.com/reoring/obdict/codec"
)

// Option configures a Model.
type Option func(*config)

type config struct {
	listStr   bool
	fieldHash bool
}

// WithListStr renders slices in String as [a, b] using String forms of the
// items (on by default). When off, slices print with fmt's %v.
func WithListStr(on bool) Option {
	return func(c *config) { c.listStr = on }
}

// WithFieldHash makes Hash digest the dumped fields (on by default). When
// off, Hash digests the Go representation instead.
func WithFieldHash(on bool) Option {
	return func(c *config) { c.fieldHash = on }
}

// Model provides value helpers for T.
type Model[T any] struct {
	reg  *obdict.Registry
	rt   reflect.Type
	desc *obdict.Type
	cfg  config
}

// Define registers T on r unless it already has both converters and returns
// its Model. A pointer T registers its element type. nil r means
// obdict.Default().
func Define[T any](r *obdict.Registry, opts ...Option) (*Model[T], error) {
	if r == nil {
		r = obdict.Default()
	}
	m := &Model[T]{reg: r, desc: obdict.Of[T](), cfg: config{listStr: true, fieldHash: true}}
	for _, o := range opts {
		o(&m.cfg)
	}
	// pointers dump through their element
	m.rt = reflect.TypeFor[T]()
	for m.rt.Kind() == reflect.Pointer {
		m.rt = m.rt.Elem()
	}
	_, hasSer := r.Serializer(obdict.Atomic(m.rt))
	_, hasDe := r.Deserializer(obdict.Atomic(m.rt))
	if !hasSer || !hasDe {
		if err := r.RegisterConverters(m.rt); err != nil {
			return nil, fmt.Errorf("model: define %s: %w", m.desc, err)
		}
	}
	r.Logger().V(1).Info("model defined", "type", m.desc.String())
	return m, nil
}

// MustDefine is like Define but panics on error.
func MustDefine[T any](r *obdict.Registry, opts ...Option) *Model[T] {
	m, err := Define[T](r, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Type returns T's descriptor.
func (m *Model[T]) Type() *obdict.Type { return m.desc }

// New builds a T from named field values. Values are dumped and loaded
// again, so nested plain data, typed values and coercible scalars are all
// accepted. Names missing from fields take their defaults.
func (m *Model[T]) New(fields map[string]any) (T, error) {
	var zero T
	if m.rt.Kind() == reflect.Struct {
		ft, err := m.reg.FieldTable(m.rt)
		if err != nil {
			return zero, err
		}
		var unknown []string
		for _, name := range maps.Keys(fields) {
			if _, ok := ft.Lookup(name); !ok {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			slices.Sort(unknown)
			return zero, fmt.Errorf("model: %s has no field %s", m.desc, strings.Join(unknown, ", "))
		}
	}
	data, err := m.reg.Dump(fields)
	if err != nil {
		return zero, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return obdict.LoadAs[T](m.reg, data)
}

// Dump converts v into plain data.
func (m *Model[T]) Dump(v T) (any, error) { return m.reg.Dump(v) }

// Load converts plain data into a T.
func (m *Model[T]) Load(data any) (T, error) { return obdict.LoadAs[T](m.reg, data) }

// EncodeJSON encodes v as JSON with sorted keys.
func (m *Model[T]) EncodeJSON(v T) ([]byte, error) {
	return codec.MarshalJSON(v, codec.WithRegistry(m.reg))
}

// DecodeJSON decodes one JSON document into a T.
func (m *Model[T]) DecodeJSON(b []byte) (T, error) {
	return codec.UnmarshalJSONAs[T](b, codec.WithRegistry(m.reg))
}

// Equal compares the Field Table entries of a and b. Fields outside the
// table are not compared.
func (m *Model[T]) Equal(a, b T) bool {
	da, err := m.reg.Dump(a)
	if err != nil {
		return false
	}
	db, err := m.reg.Dump(b)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(da, db)
}

// Hash digests v's dumped fields with FNV-1a over their canonical JSON.
// Values that cannot be dumped hash their Go representation.
func (m *Model[T]) Hash(v T) uint64 {
	h := fnv.New64a()
	if m.cfg.fieldHash {
		if d, err := m.reg.Dump(v); err == nil {
			if b, err := json.Marshal(d); err == nil {
				_, _ = h.Write(b)
				return h.Sum64()
			}
		}
	}
	fmt.Fprintf(h, "%#v", v)
	return h.Sum64()
}

// Repr returns v as compact JSON, or the error text when v cannot be encoded.
func (m *Model[T]) Repr(v T) string {
	b, err := m.EncodeJSON(v)
	if err != nil {
		return err.Error()
	}
	return string(b)
}

// String renders v as Name(a=1, b=x) with fields sorted by name. Unset
// fields are left out and nested structs known to the registry render the
// same way.
func (m *Model[T]) String(v T) string {
	return m.format(reflect.ValueOf(&v).Elem())
}

func (m *Model[T]) format(rv reflect.Value) string {
	if !rv.IsValid() {
		return "<nil>"
	}
	if rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "<nil>"
		}
		if rv.Kind() == reflect.Interface || !rv.Type().Implements(stringerType) {
			return m.format(rv.Elem())
		}
	}
	if rv.CanInterface() {
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return s.String()
		}
	}
	switch rv.Kind() {
	case reflect.Struct:
		if s, ok := m.formatStruct(rv); ok {
			return s
		}
	case reflect.Slice, reflect.Array:
		if m.cfg.listStr && rv.Type() != bytesType {
			items := make([]string, rv.Len())
			for i := range items {
				items[i] = m.format(rv.Index(i))
			}
			return "[" + strings.Join(items, ", ") + "]"
		}
	}
	return fmt.Sprint(rv.Interface())
}

func (m *Model[T]) formatStruct(rv reflect.Value) (string, bool) {
	if ser, _ := m.reg.Origin(obdict.Atomic(rv.Type())); ser != obdict.OriginSynthesized {
		return "", false
	}
	vals, err := m.reg.FieldValues(rv.Interface())
	if err != nil {
		return "", false
	}
	slices.SortFunc(vals, func(a, b obdict.FieldValue) bool { return a.Name < b.Name })
	attrs := make([]string, 0, len(vals))
	for _, fv := range vals {
		if !fv.Set {
			continue
		}
		attrs = append(attrs, fv.Name+"="+m.format(reflect.ValueOf(fv.Value)))
	}
	return rv.Type().Name() + "(" + strings.Join(attrs, ", ") + ")", true
}

var (
	stringerType = reflect.TypeFor[fmt.Stringer]()
	bytesType    = reflect.TypeFor[[]byte]()
)

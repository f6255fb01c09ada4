package obdict

import (
	"fmt"
	"reflect"

	"go.uber.org/multierr"
)

// ToDicter is implemented by types that serialize themselves. A value or
// pointer receiver both work.
type ToDicter interface {
	ToDict(enc *Encoder) (any, error)
}

// FromDicter is implemented (on *T) by types that deserialize themselves. The
// receiver is a freshly constructed zero value.
type FromDicter interface {
	FromDict(dec *Decoder, data any) error
}

var (
	toDicterType   = reflect.TypeFor[ToDicter]()
	fromDicterType = reflect.TypeFor[FromDicter]()
)

type registerConfig struct {
	ser  SerializeFunc
	de   DeserializeFunc
	deep bool
}

// RegisterOption configures RegisterConverters.
type RegisterOption func(*registerConfig)

// WithSerializer supplies the serializer explicitly. It outranks ToDict and
// synthesis.
func WithSerializer(fn SerializeFunc) RegisterOption {
	return func(c *registerConfig) { c.ser = fn }
}

// WithDeserializer supplies the deserializer explicitly. It outranks FromDict
// and synthesis.
func WithDeserializer(fn DeserializeFunc) RegisterOption {
	return func(c *registerConfig) { c.de = fn }
}

// DeepMethodScan makes the method scan also consider embedded ancestors,
// derived first, when the type's own method set has no ToDict/FromDict.
func DeepMethodScan(on bool) RegisterOption {
	return func(c *registerConfig) { c.deep = on }
}

// RegisterConverters makes rt convertible. Each side is taken from the first
// source that provides it: the explicit option, the ToDict/FromDict method
// found by the scan, then synthesis from the Field Table.
func (r *Registry) RegisterConverters(rt reflect.Type, opts ...RegisterOption) error {
	var cfg registerConfig
	for _, o := range opts {
		o(&cfg)
	}
	t := Atomic(rt)

	ser, serOrigin := cfg.ser, OriginExplicit
	if ser == nil {
		ser, serOrigin = scanSerializer(rt, cfg.deep), OriginMethod
	}
	de, deOrigin := cfg.de, OriginExplicit
	if de == nil {
		de, deOrigin = scanDeserializer(rt, cfg.deep), OriginMethod
	}
	if ser == nil || de == nil {
		if rt.Kind() != reflect.Struct {
			return &UnsupportedTypeError{Type: t.String(), Op: "synthesize converters for"}
		}
		sser, sde, err := r.SynthesizeConverters(rt)
		if err != nil {
			return err
		}
		if ser == nil {
			ser, serOrigin = sser, OriginSynthesized
		}
		if de == nil {
			de, deOrigin = sde, OriginSynthesized
		}
	}

	r.setSerializer(t, ser, serOrigin)
	r.setDeserializer(t, de, deOrigin)
	r.log.V(1).Info("registered", "type", t.String(), "serializer", serOrigin.String(), "deserializer", deOrigin.String())
	return nil
}

// Register makes T convertible. nil r means Default().
func Register[T any](r *Registry, opts ...RegisterOption) error {
	return orDefault(r).RegisterConverters(reflect.TypeFor[T](), opts...)
}

// MustRegister is like Register but panics on error.
func MustRegister[T any](r *Registry, opts ...RegisterOption) {
	if err := Register[T](r, opts...); err != nil {
		panic(err)
	}
}

// RegisterAll registers each type with default options and reports every
// failure.
func (r *Registry) RegisterAll(types ...reflect.Type) error {
	var err error
	for _, rt := range types {
		if rerr := r.RegisterConverters(rt); rerr != nil {
			err = multierr.Append(err, fmt.Errorf("register %s: %w", typeName(rt), rerr))
		}
	}
	return err
}

// RegisterConverters makes rt convertible on the default registry.
func RegisterConverters(rt reflect.Type, opts ...RegisterOption) error {
	return Default().RegisterConverters(rt, opts...)
}

// ---- method scan ----

// embeddedPath is an ancestor reached through the field index path.
type embeddedPath struct {
	rt    reflect.Type
	index []int
}

// ancestorPaths lists exported embedded ancestors derived first, each once,
// at its shallowest position. Methods of unexported embedded structs cannot be
// called through reflection.
func ancestorPaths(rt reflect.Type) []embeddedPath {
	var out []embeddedPath
	seen := map[reflect.Type]bool{rt: true}
	level := []embeddedPath{{rt: rt}}
	for len(level) > 0 {
		var next []embeddedPath
		for _, p := range level {
			for i := 0; i < p.rt.NumField(); i++ {
				sf := p.rt.Field(i)
				if !isEmbeddedStruct(sf) || !sf.IsExported() {
					continue
				}
				et := indirectType(sf.Type)
				if seen[et] {
					continue
				}
				seen[et] = true
				ep := embeddedPath{rt: et, index: append(append([]int(nil), p.index...), i)}
				out = append(out, ep)
				next = append(next, ep)
			}
		}
		level = next
	}
	return out
}

func scanSerializer(rt reflect.Type, deep bool) SerializeFunc {
	switch {
	case rt.Implements(toDicterType):
		return func(enc *Encoder, v any) (any, error) {
			return v.(ToDicter).ToDict(enc)
		}
	case reflect.PointerTo(rt).Implements(toDicterType):
		return func(enc *Encoder, v any) (any, error) {
			return addressable(reflect.ValueOf(v)).Interface().(ToDicter).ToDict(enc)
		}
	}
	if !deep || rt.Kind() != reflect.Struct {
		return nil
	}
	for _, ap := range ancestorPaths(rt) {
		if !reflect.PointerTo(ap.rt).Implements(toDicterType) {
			continue
		}
		index := ap.index
		return func(enc *Encoder, v any) (any, error) {
			p := addressable(reflect.ValueOf(v))
			f, ok := fieldOf(p.Elem(), index)
			if !ok || (f.Kind() == reflect.Pointer && f.IsNil()) {
				return nil, nil
			}
			return embeddedReceiver(f).Interface().(ToDicter).ToDict(enc)
		}
	}
	return nil
}

func scanDeserializer(rt reflect.Type, deep bool) DeserializeFunc {
	if reflect.PointerTo(rt).Implements(fromDicterType) {
		return func(dec *Decoder, _ *Type, data any) (any, error) {
			p, err := construct(dec, rt)
			if err != nil {
				return nil, err
			}
			if err := p.Interface().(FromDicter).FromDict(dec, data); err != nil {
				return nil, err
			}
			return p.Elem().Interface(), nil
		}
	}
	if !deep || rt.Kind() != reflect.Struct {
		return nil
	}
	for _, ap := range ancestorPaths(rt) {
		if !reflect.PointerTo(ap.rt).Implements(fromDicterType) {
			continue
		}
		index := ap.index
		return func(dec *Decoder, _ *Type, data any) (any, error) {
			p, err := construct(dec, rt)
			if err != nil {
				return nil, err
			}
			f := fieldForSet(p.Elem(), index)
			if f.Kind() == reflect.Pointer && f.IsNil() {
				f.Set(reflect.New(f.Type().Elem()))
			}
			if err := embeddedReceiver(f).Interface().(FromDicter).FromDict(dec, data); err != nil {
				return nil, err
			}
			return p.Elem().Interface(), nil
		}
	}
	return nil
}

// embeddedReceiver returns a pointer receiver for an addressable embedded
// field, which is either the struct itself or a pointer to it.
func embeddedReceiver(f reflect.Value) reflect.Value {
	if f.Kind() == reflect.Pointer {
		return f
	}
	return f.Addr()
}

package obdict

import (
	"reflect"
	"sync"

	"github.com/go-logr/logr"
)

// SerializeFunc converts v into plain data. enc carries the registry and the
// current path; nested values should be dumped through it.
type SerializeFunc func(enc *Encoder, v any) (any, error)

// DeserializeFunc converts plain data into a value of t's Go type. Nested
// values should be loaded through dec.
type DeserializeFunc func(dec *Decoder, t *Type, data any) (any, error)

// Origin records how a type's converters were obtained.
type Origin uint8

const (
	OriginNone Origin = iota
	OriginBuiltin
	OriginExplicit
	OriginMethod
	OriginSynthesized
	OriginEnum
)

func (o Origin) String() string {
	switch o {
	case OriginBuiltin:
		return "builtin"
	case OriginExplicit:
		return "explicit"
	case OriginMethod:
		return "method"
	case OriginSynthesized:
		return "synthesized"
	case OriginEnum:
		return "enum"
	}
	return "none"
}

// DefaultMaxDepth bounds dump/load recursion unless WithMaxDepth says otherwise.
const DefaultMaxDepth = 1000

// Registry maps exact Type descriptors to converters. A Registry is safe for
// concurrent use; writes are serialized by an RWMutex.
type Registry struct {
	mu            sync.RWMutex
	serializers   map[*Type]SerializeFunc
	deserializers map[*Type]DeserializeFunc
	origins       map[*Type][2]Origin // serializer, deserializer
	names         map[string]*Type
	enums         map[*Type][]any

	fieldMu     sync.RWMutex
	adjustments map[reflect.Type]Adjustments
	tables      map[reflect.Type]*FieldTable
	bindings    map[reflect.Type]*structBinding

	log          logr.Logger
	maxDepth     int
	builtins     bool
	namedScalars bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registration and cache events.
func WithLogger(log logr.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

// WithMaxDepth bounds nesting for dump and load. Values < 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

// WithoutBuiltins leaves the registry empty instead of installing the
// primitive and container converters.
func WithoutBuiltins() Option {
	return func(r *Registry) {
		r.builtins = false
	}
}

// WithNamedScalars lets named scalar types without converters, such as
// type Celsius float64, dump and load as their underlying basic type. By
// default they fail with UnsupportedTypeError like any unregistered type.
func WithNamedScalars() Option {
	return func(r *Registry) {
		r.namedScalars = true
	}
}

// NewRegistry returns a registry with the built-in converters installed.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		serializers:   map[*Type]SerializeFunc{},
		deserializers: map[*Type]DeserializeFunc{},
		origins:       map[*Type][2]Origin{},
		names:         map[string]*Type{},
		enums:         map[*Type][]any{},
		adjustments:   map[reflect.Type]Adjustments{},
		tables:        map[reflect.Type]*FieldTable{},
		bindings:      map[reflect.Type]*structBinding{},
		log:           logr.Discard(),
		maxDepth:      DefaultMaxDepth,
		builtins:      true,
	}
	for _, o := range opts {
		o(r)
	}
	if r.builtins {
		installBuiltins(r)
	}
	return r
}

var (
	defaultMu  sync.RWMutex
	defaultReg = NewRegistry()
)

// Default returns the process-wide registry used by the package-level
// functions.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultReg
}

// SetDefault replaces the process-wide registry. nil installs a fresh one.
func SetDefault(r *Registry) {
	if r == nil {
		r = NewRegistry()
	}
	defaultMu.Lock()
	defaultReg = r
	defaultMu.Unlock()
}

func orDefault(r *Registry) *Registry {
	if r == nil {
		return Default()
	}
	return r
}

// Logger returns the registry's logger.
func (r *Registry) Logger() logr.Logger { return r.log }

// MaxDepth returns the recursion bound.
func (r *Registry) MaxDepth() int { return r.maxDepth }

// NamedScalars reports whether WithNamedScalars was given.
func (r *Registry) NamedScalars() bool { return r.namedScalars }

// SetSerializer installs fn for the exact descriptor t, replacing any existing
// entry (built-ins included).
func (r *Registry) SetSerializer(t *Type, fn SerializeFunc) {
	r.setSerializer(t, fn, OriginExplicit)
}

// SetDeserializer installs fn for the exact descriptor t, replacing any
// existing entry (built-ins included).
func (r *Registry) SetDeserializer(t *Type, fn DeserializeFunc) {
	r.setDeserializer(t, fn, OriginExplicit)
}

func (r *Registry) setSerializer(t *Type, fn SerializeFunc, o Origin) {
	r.mu.Lock()
	_, replaced := r.serializers[t]
	r.serializers[t] = fn
	r.record(t, 0, o)
	r.mu.Unlock()
	if replaced {
		r.log.V(1).Info("serializer replaced", "type", t.String(), "origin", o.String())
	}
}

func (r *Registry) setDeserializer(t *Type, fn DeserializeFunc, o Origin) {
	r.mu.Lock()
	_, replaced := r.deserializers[t]
	r.deserializers[t] = fn
	r.record(t, 1, o)
	r.mu.Unlock()
	if replaced {
		r.log.V(1).Info("deserializer replaced", "type", t.String(), "origin", o.String())
	}
}

// record must be called with r.mu held.
func (r *Registry) record(t *Type, side int, o Origin) {
	sides := r.origins[t]
	sides[side] = o
	r.origins[t] = sides
	if t.kind == KindAtomic {
		name := t.String()
		if prev, ok := r.names[name]; ok && prev != t {
			r.log.V(1).Info("type name shadowed", "name", name, "previousPkg", pkgOf(prev), "pkg", pkgOf(t))
		}
		r.names[name] = t
	}
}

func pkgOf(t *Type) string {
	if t.goType == nil {
		return ""
	}
	return t.goType.PkgPath()
}

// Serializer returns the entry registered for exactly t.
func (r *Registry) Serializer(t *Type) (SerializeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.serializers[t]
	return fn, ok
}

// Deserializer returns the entry registered for exactly t.
func (r *Registry) Deserializer(t *Type) (DeserializeFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.deserializers[t]
	return fn, ok
}

// Origin reports how t's serializer and deserializer were installed.
func (r *Registry) Origin(t *Type) (ser, de Origin) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sides := r.origins[t]
	return sides[0], sides[1]
}

// Lookup finds a registered atomic descriptor by its String form.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.names[name]
	return t, ok
}

// Alias makes t resolvable by an extra name in ParseType.
func (r *Registry) Alias(name string, t *Type) {
	r.mu.Lock()
	r.names[name] = t
	r.mu.Unlock()
}

// EnumValuesOf returns the underlying values of an enum registered with
// RegisterEnum, in declaration order.
func (r *Registry) EnumValuesOf(t *Type) ([]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vs, ok := r.enums[t]
	return append([]any(nil), vs...), ok
}

// ---- package-level API on the default registry ----

// SetSerializer installs fn on the default registry.
func SetSerializer(t *Type, fn SerializeFunc) { Default().SetSerializer(t, fn) }

// SetDeserializer installs fn on the default registry.
func SetDeserializer(t *Type, fn DeserializeFunc) { Default().SetDeserializer(t, fn) }

// SerializerFor returns r's serializer registered for T. nil r means Default().
func SerializerFor[T any](r *Registry) (SerializeFunc, bool) {
	return orDefault(r).Serializer(Of[T]())
}

// DeserializerFor returns r's deserializer registered for T.
func DeserializerFor[T any](r *Registry) (DeserializeFunc, bool) {
	return orDefault(r).Deserializer(Of[T]())
}

// SetSerializerFor installs a typed serializer for T.
func SetSerializerFor[T any](r *Registry, fn func(enc *Encoder, v T) (any, error)) {
	orDefault(r).SetSerializer(Of[T](), func(enc *Encoder, v any) (any, error) {
		return fn(enc, v.(T))
	})
}

// SetDeserializerFor installs a typed deserializer for T.
func SetDeserializerFor[T any](r *Registry, fn func(dec *Decoder, data any) (T, error)) {
	orDefault(r).SetDeserializer(Of[T](), func(dec *Decoder, _ *Type, data any) (any, error) {
		return fn(dec, data)
	})
}

package obdict

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Kind classifies a Type descriptor.
type Kind uint8

const (
	KindAtomic Kind = iota // an opaque Go type
	KindSeq                // homogeneous sequence, one nested descriptor
	KindMap                // key/value map, two nested descriptors
	KindTuple              // fixed-arity heterogeneous tuple, N nested descriptors
)

func (k Kind) String() string {
	switch k {
	case KindAtomic:
		return "atomic"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindTuple:
		return "tuple"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Type describes a shape of data: either an atomic Go type or a parametric
// container tagged with nested descriptors.
//
// Descriptors are immutable and interned, so two requests for the same shape
// return the same pointer and may be compared with ==.
type Type struct {
	kind   Kind
	goType reflect.Type
	args   []*Type
	id     uint64
	str    string
}

func (t *Type) Kind() Kind { return t.kind }

// GoType is the Go type values of this descriptor load into. Sequences load
// into []E, maps into map[K]V and tuples into Tuple.
func (t *Type) GoType() reflect.Type { return t.goType }

// Args returns a copy of the nested descriptors.
func (t *Type) Args() []*Type { return append([]*Type(nil), t.args...) }

// Arg returns the i-th nested descriptor.
func (t *Type) Arg(i int) *Type { return t.args[i] }

func (t *Type) Arity() int { return len(t.args) }

func (t *Type) IsParametric() bool { return t.kind != KindAtomic }

// String renders the descriptor in the grammar accepted by ParseType, for
// example seq[int], map[string,int] or tuple[int,string].
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.str
}

var (
	tupleType  = reflect.TypeFor[Tuple]()
	anyType    = reflect.TypeFor[any]()
	numberType = reflect.TypeFor[json.Number]()
)

// descriptor interning
type internKey struct {
	kind Kind
	rt   reflect.Type
	args string
}

var (
	_internMu   sync.RWMutex
	_internPool = map[internKey]*Type{}
	_internSeq  atomic.Uint64
)

func intern(k internKey, build func() *Type) *Type {
	_internMu.RLock()
	if v, ok := _internPool[k]; ok {
		_internMu.RUnlock()
		return v
	}
	_internMu.RUnlock()

	_internMu.Lock()
	defer _internMu.Unlock()
	if v, ok := _internPool[k]; ok { // double-check
		return v
	}
	t := build()
	t.id = _internSeq.Add(1)
	_internPool[k] = t
	return t
}

// Atomic returns the atomic descriptor for rt.
func Atomic(rt reflect.Type) *Type {
	if rt == nil {
		rt = anyType
	}
	return intern(internKey{kind: KindAtomic, rt: rt}, func() *Type {
		return &Type{kind: KindAtomic, goType: rt, str: typeName(rt)}
	})
}

// Of returns the descriptor Describe derives for T.
func Of[T any]() *Type { return Describe(reflect.TypeFor[T]()) }

// Describe derives a descriptor from a Go type. Unnamed slices and maps become
// parametric descriptors; every other type, including named containers and
// Tuple, is atomic.
func Describe(rt reflect.Type) *Type {
	if rt == nil {
		return Atomic(anyType)
	}
	if rt.Name() == "" {
		switch rt.Kind() {
		case reflect.Slice:
			return SeqOf(Describe(rt.Elem()))
		case reflect.Map:
			return MapOf(Describe(rt.Key()), Describe(rt.Elem()))
		}
	}
	return Atomic(rt)
}

// SeqOf returns the interned sequence-of-elem descriptor.
func SeqOf(elem *Type) *Type { return MustParametric(KindSeq, elem) }

// MapOf returns the interned map-of-key,value descriptor. It panics when the
// key's Go type is not comparable.
func MapOf(key, val *Type) *Type { return MustParametric(KindMap, key, val) }

// TupleOf returns the interned tuple descriptor with the given components.
func TupleOf(elems ...*Type) *Type { return MustParametric(KindTuple, elems...) }

// MustParametric is like Parametric but panics on a malformed descriptor.
func MustParametric(kind Kind, args ...*Type) *Type {
	t, err := Parametric(kind, args...)
	if err != nil {
		panic(err)
	}
	return t
}

// Parametric validates the nested-type arity for kind and returns the interned
// descriptor. Sequences take exactly one argument, maps exactly two (with a
// comparable key) and tuples any number.
func Parametric(kind Kind, args ...*Type) (*Type, error) {
	name := kind.String() + "[" + joinTypes(args) + "]"
	for i, a := range args {
		if a == nil {
			return nil, &MalformedTypeDescriptorError{Descriptor: name, Reason: fmt.Sprintf("argument %d is nil", i)}
		}
	}
	switch kind {
	case KindSeq:
		if len(args) != 1 {
			return nil, &MalformedTypeDescriptorError{Descriptor: name, Reason: fmt.Sprintf("seq takes 1 type argument, got %d", len(args))}
		}
	case KindMap:
		if len(args) != 2 {
			return nil, &MalformedTypeDescriptorError{Descriptor: name, Reason: fmt.Sprintf("map takes 2 type arguments, got %d", len(args))}
		}
		if !args[0].goType.Comparable() {
			return nil, &MalformedTypeDescriptorError{Descriptor: name, Reason: "map key " + args[0].String() + " is not comparable"}
		}
	case KindTuple:
	default:
		return nil, &MalformedTypeDescriptorError{Descriptor: name, Reason: "not a parametric kind"}
	}

	ids := make([]string, len(args))
	for i, a := range args {
		ids[i] = strconv.FormatUint(a.id, 10)
	}
	k := internKey{kind: kind, args: strings.Join(ids, ",")}
	return intern(k, func() *Type {
		t := &Type{kind: kind, args: append([]*Type(nil), args...), str: name}
		switch kind {
		case KindSeq:
			t.goType = reflect.SliceOf(args[0].goType)
		case KindMap:
			t.goType = reflect.MapOf(args[0].goType, args[1].goType)
		default:
			t.goType = tupleType
		}
		return t
	}), nil
}

func joinTypes(ts []*Type) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

func typeName(rt reflect.Type) string {
	if rt == anyType {
		return "any"
	}
	return rt.String()
}

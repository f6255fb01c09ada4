package jsonschema

import (
	"reflect"
	"strings"
	"time"

	"github.com/reoring/obdict"
)

var (
	timeType     = reflect.TypeFor[time.Time]()
	durationType = reflect.TypeFor[time.Duration]()
)

// FromType projects the data shape of descriptor t, as r would dump it, into
// a JSON Schema. Structs with synthesized converters are emitted once under
// $defs and referenced, so recursive types terminate. Types with explicit or
// method converters have no known shape and project to an untyped schema.
// nil r means obdict.Default().
func FromType(r *obdict.Registry, t *obdict.Type) (*Schema, error) {
	if r == nil {
		r = obdict.Default()
	}
	b := &builder{reg: r, defs: map[string]*Schema{}}
	s, err := b.schema(t)
	if err != nil {
		return nil, err
	}
	s.SchemaURI = Draft
	if len(b.defs) > 0 {
		s.Defs = b.defs
	}
	return s, nil
}

type builder struct {
	reg  *obdict.Registry
	defs map[string]*Schema
}

func (b *builder) schema(t *obdict.Type) (*Schema, error) {
	switch t.Kind() {
	case obdict.KindSeq:
		items, err := b.schema(t.Arg(0))
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil
	case obdict.KindMap:
		vals, err := b.schema(t.Arg(1))
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: vals}, nil
	case obdict.KindTuple:
		s := &Schema{Type: "array", PrefixItems: make([]*Schema, t.Arity()), MinItems: intPtr(t.Arity()), MaxItems: intPtr(t.Arity())}
		for i, a := range t.Args() {
			ps, err := b.schema(a)
			if err != nil {
				return nil, err
			}
			s.PrefixItems[i] = ps
		}
		return s, nil
	}

	if vals, ok := b.reg.EnumValuesOf(t); ok {
		return &Schema{Title: t.String(), Enum: vals}, nil
	}
	ser, _ := b.reg.Origin(t)
	switch ser {
	case obdict.OriginSynthesized:
		return b.object(t)
	case obdict.OriginExplicit, obdict.OriginMethod:
		switch t.GoType() {
		case timeType:
			return &Schema{Type: "string", Format: "date-time"}, nil
		case durationType:
			return &Schema{Type: "string", Description: "Go duration, e.g. 1h30m"}, nil
		}
		return &Schema{Title: t.String()}, nil
	}
	return b.kind(t)
}

// kind mirrors the built-in dump rules. Named scalars only have a shape
// when the registry was built WithNamedScalars.
func (b *builder) kind(t *obdict.Type) (*Schema, error) {
	switch t {
	case obdict.Any:
		return &Schema{}, nil
	case obdict.Number:
		return &Schema{Type: "number"}, nil
	case obdict.TupleAny:
		return &Schema{Type: "array"}, nil
	}
	rt := t.GoType()
	if rt.PkgPath() != "" && !b.reg.NamedScalars() {
		switch rt.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		default:
			return nil, &obdict.UnsupportedTypeError{Type: t.String(), Op: "schema of"}
		}
	}
	switch rt.Kind() {
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &Schema{Type: "integer"}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		zero := 0.0
		return &Schema{Type: "integer", Minimum: &zero}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	case reflect.Pointer:
		elem, err := b.schema(obdict.Describe(rt.Elem()))
		if err != nil {
			return nil, err
		}
		return &Schema{OneOf: []*Schema{elem, {Type: "null"}}}, nil
	case reflect.Slice, reflect.Array:
		items, err := b.schema(obdict.Describe(rt.Elem()))
		if err != nil {
			return nil, err
		}
		s := &Schema{Type: "array", Items: items}
		if rt.Kind() == reflect.Array {
			s.MinItems, s.MaxItems = intPtr(rt.Len()), intPtr(rt.Len())
		}
		return s, nil
	case reflect.Map:
		vals, err := b.schema(obdict.Describe(rt.Elem()))
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: vals}, nil
	}
	return nil, &obdict.UnsupportedTypeError{Type: t.String(), Op: "schema of"}
}

// object emits the struct under $defs and returns a reference to it.
func (b *builder) object(t *obdict.Type) (*Schema, error) {
	key := t.String()
	ref := &Schema{Ref: "#/$defs/" + escapeToken(key)}
	if _, ok := b.defs[key]; ok {
		return ref, nil
	}
	def := &Schema{Type: "object", Title: key, Properties: map[string]*Schema{}}
	b.defs[key] = def

	rt := t.GoType()
	ft, err := b.reg.FieldTable(rt)
	if err != nil {
		return nil, err
	}
	var defaults map[string]any
	if d, ok := reflect.New(rt).Interface().(obdict.FieldDefaulter); ok {
		defaults = d.FieldDefaults()
	}
	for _, f := range ft.Fields() {
		ps, err := b.schema(f.Type)
		if err != nil {
			return nil, err
		}
		if v, ok := defaults[f.Name]; ok {
			if ps.Default, err = b.reg.Dump(v); err != nil {
				return nil, err
			}
		}
		def.Properties[f.Name] = ps
	}
	return ref, nil
}

func escapeToken(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

func intPtr(n int) *int { return &n }

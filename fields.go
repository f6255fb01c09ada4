package obdict

import (
	"reflect"
	"strings"
)

// Field is one entry of a Field Table.
type Field struct {
	Name string
	Type *Type
}

// F is shorthand for a Field whose descriptor is derived from T.
func F[T any](name string) Field { return Field{Name: name, Type: Of[T]()} }

// FieldTable is the ordered name → descriptor table that drives default
// converters. Tables are immutable once built.
type FieldTable struct {
	fields []Field
	index  map[string]int
}

func newFieldTable() *FieldTable { return &FieldTable{index: map[string]int{}} }

func (ft *FieldTable) Len() int { return len(ft.fields) }

// Fields returns the entries in table order.
func (ft *FieldTable) Fields() []Field { return append([]Field(nil), ft.fields...) }

func (ft *FieldTable) Names() []string {
	out := make([]string, len(ft.fields))
	for i, f := range ft.fields {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the descriptor of the named entry.
func (ft *FieldTable) Lookup(name string) (*Type, bool) {
	i, ok := ft.index[name]
	if !ok {
		return nil, false
	}
	return ft.fields[i].Type, true
}

// String renders the table as {a: int, c: float64}.
func (ft *FieldTable) String() string {
	b := &strings.Builder{}
	b.WriteByte('{')
	for i, f := range ft.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Type.String())
	}
	b.WriteByte('}')
	return b.String()
}

// set keeps the position of an existing name and appends new ones.
func (ft *FieldTable) set(name string, t *Type) {
	if i, ok := ft.index[name]; ok {
		ft.fields[i].Type = t
		return
	}
	ft.index[name] = len(ft.fields)
	ft.fields = append(ft.fields, Field{Name: name, Type: t})
}

func (ft *FieldTable) remove(name string) {
	i, ok := ft.index[name]
	if !ok {
		return
	}
	ft.fields = append(ft.fields[:i], ft.fields[i+1:]...)
	delete(ft.index, name)
	for j := i; j < len(ft.fields); j++ {
		ft.index[ft.fields[j].Name] = j
	}
}

func (ft *FieldTable) has(name string) bool {
	_, ok := ft.index[name]
	return ok
}

// Adjustments modify the Field Table at one level of a struct's ancestry.
// They are applied in field order: Override (or the declared fields), then
// Ignore, Add and Edit.
type Adjustments struct {
	// Override replaces the level's declared fields when non-nil.
	Override []Field
	// Ignore removes names from the table accumulated so far.
	Ignore []string
	// Add inserts names not yet in the table.
	Add []Field
	// Edit retypes names already in the table.
	Edit []Field
}

// Adjustments may also be declared on the struct itself through tags on
// blank fields, each entry "name:descriptor" separated by spaces:
//
//	type Derived struct {
//		Base
//		_ struct{} `obdict.ignore:"b" obdict.add:"c:float64" obdict.edit:"a:string"`
//	}
//
// obdict.override lists the level's fields in place of its declared ones.
// Adjustments given to Registry.Adjust take precedence over tags.
const (
	tagOverride = "obdict.override"
	tagIgnore   = "obdict.ignore"
	tagAdd      = "obdict.add"
	tagEdit     = "obdict.edit"
)

// Adjust declares adjustments for the struct type rt and drops cached tables.
func (r *Registry) Adjust(rt reflect.Type, a Adjustments) {
	r.fieldMu.Lock()
	r.adjustments[rt] = a
	r.fieldMu.Unlock()
	r.InvalidateFieldTables()
}

// AdjustFields declares adjustments for T. nil r means Default().
func AdjustFields[T any](r *Registry, a Adjustments) {
	orDefault(r).Adjust(reflect.TypeFor[T](), a)
}

// InvalidateFieldTables drops the cached tables of the given types, or every
// cached table when called without arguments.
func (r *Registry) InvalidateFieldTables(types ...reflect.Type) {
	r.fieldMu.Lock()
	if len(types) == 0 {
		clear(r.tables)
		clear(r.bindings)
	} else {
		for _, rt := range types {
			delete(r.tables, rt)
			delete(r.bindings, rt)
		}
	}
	r.fieldMu.Unlock()
	r.log.V(1).Info("field tables invalidated", "types", len(types))
}

// FieldTable returns the cached Field Table of struct type rt, building it on
// first use.
func (r *Registry) FieldTable(rt reflect.Type) (*FieldTable, error) {
	r.fieldMu.RLock()
	ft, ok := r.tables[rt]
	r.fieldMu.RUnlock()
	if ok {
		return ft, nil
	}
	if rt.Kind() != reflect.Struct {
		return nil, &UnsupportedTypeError{Type: typeName(rt), Op: "field table of"}
	}

	ft = newFieldTable()
	for _, level := range ancestry(rt) {
		a, err := r.adjustmentsFor(level)
		if err != nil {
			return nil, err
		}
		own := a.Override
		if own == nil {
			own = declaredFields(level)
		}
		for _, f := range own {
			ft.set(f.Name, f.Type)
		}
		for _, name := range a.Ignore {
			ft.remove(name)
		}
		for _, f := range a.Add {
			if !ft.has(f.Name) {
				ft.set(f.Name, f.Type)
			}
		}
		for _, f := range a.Edit {
			if ft.has(f.Name) {
				ft.set(f.Name, f.Type)
			}
		}
	}

	r.fieldMu.Lock()
	defer r.fieldMu.Unlock()
	if cached, ok := r.tables[rt]; ok { // double-check
		return cached, nil
	}
	r.tables[rt] = ft
	return ft, nil
}

// FieldTableOf returns the Field Table of T. nil r means Default().
func FieldTableOf[T any](r *Registry) (*FieldTable, error) {
	return orDefault(r).FieldTable(reflect.TypeFor[T]())
}

func (r *Registry) adjustmentsFor(rt reflect.Type) (Adjustments, error) {
	r.fieldMu.RLock()
	a, ok := r.adjustments[rt]
	r.fieldMu.RUnlock()
	if ok {
		return a, nil
	}
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if sf.Name != "_" {
			continue
		}
		var err error
		if v, ok := sf.Tag.Lookup(tagOverride); ok {
			if a.Override, err = r.parseFieldList(rt, v); err != nil {
				return a, err
			}
			if a.Override == nil {
				a.Override = []Field{}
			}
		}
		if v, ok := sf.Tag.Lookup(tagIgnore); ok {
			a.Ignore = append(a.Ignore, strings.Fields(v)...)
		}
		if v, ok := sf.Tag.Lookup(tagAdd); ok {
			add, err := r.parseFieldList(rt, v)
			if err != nil {
				return a, err
			}
			a.Add = append(a.Add, add...)
		}
		if v, ok := sf.Tag.Lookup(tagEdit); ok {
			edit, err := r.parseFieldList(rt, v)
			if err != nil {
				return a, err
			}
			a.Edit = append(a.Edit, edit...)
		}
	}
	return a, nil
}

// parseFieldList parses "a:int b:seq[string]".
func (r *Registry) parseFieldList(rt reflect.Type, s string) ([]Field, error) {
	var out []Field
	for _, entry := range strings.Fields(s) {
		name, expr, ok := strings.Cut(entry, ":")
		if !ok || name == "" {
			return nil, &MalformedTypeDescriptorError{Descriptor: entry, Reason: "field entry of " + typeName(rt) + " wants name:descriptor"}
		}
		t, err := r.ParseType(expr)
		if err != nil {
			return nil, err
		}
		out = append(out, Field{Name: name, Type: t})
	}
	return out, nil
}

// ancestry linearizes rt and its embedded structs most-base first. Each
// struct appears once, at the position of its last visit in a derived-first
// walk, so shared bases sort before everything embedding them.
func ancestry(rt reflect.Type) []reflect.Type {
	var walk []reflect.Type
	onPath := map[reflect.Type]bool{}
	var visit func(reflect.Type)
	visit = func(t reflect.Type) {
		if onPath[t] { // type Node struct{ *Node }
			return
		}
		onPath[t] = true
		walk = append(walk, t)
		for _, e := range embeddedStructs(t) {
			visit(e)
		}
		delete(onPath, t)
	}
	visit(rt)

	seen := map[reflect.Type]bool{}
	out := make([]reflect.Type, 0, len(walk))
	for i := len(walk) - 1; i >= 0; i-- {
		if seen[walk[i]] {
			continue
		}
		seen[walk[i]] = true
		out = append(out, walk[i])
	}
	return out
}

// embeddedStructs lists the struct types embedded directly in rt, skipping
// unexported embedded pointers (reflection cannot allocate them).
func embeddedStructs(rt reflect.Type) []reflect.Type {
	var out []reflect.Type
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.Anonymous {
			continue
		}
		et := sf.Type
		if et.Kind() == reflect.Pointer {
			if !sf.IsExported() {
				continue
			}
			et = et.Elem()
		}
		if et.Kind() == reflect.Struct {
			out = append(out, et)
		}
	}
	return out
}

// declaredFields returns the exported, non-embedded fields rt declares itself.
func declaredFields(rt reflect.Type) []Field {
	var out []Field
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() || isEmbeddedStruct(sf) {
			continue
		}
		name := ResolveStructKey(sf)
		if name == "-" {
			continue
		}
		out = append(out, Field{Name: name, Type: Describe(sf.Type)})
	}
	return out
}

func isEmbeddedStruct(sf reflect.StructField) bool {
	return sf.Anonymous && indirectType(sf.Type).Kind() == reflect.Struct
}

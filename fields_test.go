package obdict_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/obdict"
)

type Base struct {
	A int    `obdict:"a"`
	B string `obdict:"b"`
}

type Derived struct {
	Base
	_ struct{} `obdict.ignore:"b" obdict.add:"c:float64" obdict.edit:"a:string"`
}

func TestFieldTable_Adjustments(t *testing.T) {
	r := obdict.NewRegistry()
	ft, err := obdict.FieldTableOf[Derived](r)
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if got := ft.String(); got != "{a: string, c: float64}" {
		t.Fatalf("table: got %s", got)
	}
	base, err := obdict.FieldTableOf[Base](r)
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if got := base.String(); got != "{a: int, b: string}" {
		t.Fatalf("base adjustments must not leak: got %s", got)
	}
	if typ, ok := ft.Lookup("c"); !ok || typ != obdict.Float64 {
		t.Fatalf("lookup c: %v %v", typ, ok)
	}
	if _, ok := ft.Lookup("b"); ok {
		t.Fatalf("b is ignored")
	}
}

func TestFieldTable_Cached(t *testing.T) {
	r := obdict.NewRegistry()
	a, _ := obdict.FieldTableOf[Base](r)
	b, _ := obdict.FieldTableOf[Base](r)
	if a != b {
		t.Fatalf("tables must be cached")
	}
	r.InvalidateFieldTables(reflect.TypeFor[Base]())
	c, _ := obdict.FieldTableOf[Base](r)
	if c == a {
		t.Fatalf("invalidate must drop the cached table")
	}
	if diff := cmp.Diff(a.Names(), c.Names()); diff != "" {
		t.Fatalf("rebuilt table differs:\n%s", diff)
	}
}

func TestDerived_UnboundWithoutStore(t *testing.T) {
	r := obdict.NewRegistry()
	err := obdict.Register[Derived](r)
	var ue *obdict.UnboundFieldError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnboundFieldError, got %v", err)
	}
	if ue.Field != "a" {
		t.Fatalf("the retyped field should be reported first: %+v", ue)
	}
}

type Plain struct {
	A int    `obdict:"a"`
	B string `obdict:"b"`
}

func TestAdjust_Registry(t *testing.T) {
	r := obdict.NewRegistry()
	obdict.MustRegister[Plain](r)

	got, err := r.Dump(Plain{A: 1, B: "x"})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": 1, "b": "x"}, got); diff != "" {
		t.Fatalf("before adjust (-want +got):\n%s", diff)
	}

	// adjusting after registration reloads the registered converters
	obdict.AdjustFields[Plain](r, obdict.Adjustments{Ignore: []string{"b"}})
	got, err = r.Dump(Plain{A: 1, B: "x"})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": 1}, got); diff != "" {
		t.Fatalf("after adjust (-want +got):\n%s", diff)
	}
	p, err := obdict.LoadAs[Plain](r, map[string]any{"a": 2, "b": "ignored"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p != (Plain{A: 2}) {
		t.Fatalf("ignored name must not load: %#v", p)
	}
}

func TestAdjust_AddAndEditRules(t *testing.T) {
	r := obdict.NewRegistry()
	r.Adjust(reflect.TypeFor[Plain](), obdict.Adjustments{
		Add:  []obdict.Field{obdict.F[string]("a")},
		Edit: []obdict.Field{obdict.F[int]("missing")},
	})
	ft, err := obdict.FieldTableOf[Plain](r)
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if got := ft.String(); got != "{a: int, b: string}" {
		t.Fatalf("add must skip present names and edit absent ones: %s", got)
	}

	r.Adjust(reflect.TypeFor[Plain](), obdict.Adjustments{Override: []obdict.Field{obdict.F[int]("a")}})
	ft, err = obdict.FieldTableOf[Plain](r)
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if got := ft.String(); got != "{a: int}" {
		t.Fatalf("override: %s", got)
	}
}

type Masked struct {
	Base
	Secret string
	_      struct{} `obdict.override:""`
}

func TestFieldTable_EmptyOverrideTag(t *testing.T) {
	ft, err := obdict.FieldTableOf[Masked](obdict.NewRegistry())
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if got := ft.String(); got != "{a: int, b: string}" {
		t.Fatalf("got %s", got)
	}
}

type Root struct {
	R int `obdict:"r"`
}

type Left struct {
	Root
	L int `obdict:"l"`
}

type Right struct {
	Root
	Rt int `obdict:"rt"`
}

type Bottom struct {
	Left
	Right
	X int `obdict:"x"`
}

func TestFieldTable_DiamondOrder(t *testing.T) {
	r := obdict.NewRegistry()
	ft, err := obdict.FieldTableOf[Bottom](r)
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if diff := cmp.Diff([]string{"r", "rt", "l", "x"}, ft.Names()); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}

	obdict.MustRegister[Bottom](r)
	var b Bottom
	b.Left.R, b.L, b.Rt, b.X = 1, 2, 3, 4
	got, err := r.Dump(b)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"r": 1, "l": 2, "rt": 3, "x": 4}, got); diff != "" {
		t.Fatalf("dump (-want +got):\n%s", diff)
	}

	back, err := obdict.LoadAs[Bottom](r, map[string]any{"r": 5, "l": 6, "rt": 7, "x": 8})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.Left.R != 5 || back.Right.R != 0 || back.L != 6 || back.Rt != 7 || back.X != 8 {
		t.Fatalf("shared base must bind through the first embedding: %+v", back)
	}
}

type LeftOnly struct {
	Root
}

type Shadowed struct {
	LeftOnly
	Right
	R string `obdict:"r"`
}

func TestFieldTable_ShallowFieldWins(t *testing.T) {
	r := obdict.NewRegistry()
	if err := obdict.Register[Shadowed](r); err != nil {
		t.Fatalf("register: %v", err)
	}
	var v Shadowed
	v.R, v.LeftOnly.R, v.Rt = "top", 9, 3
	got, err := r.Dump(v)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"r": "top", "rt": 3}, got); diff != "" {
		t.Fatalf("dump (-want +got):\n%s", diff)
	}
}

type SelfRef struct {
	*SelfRef
	N int `obdict:"n"`
}

func TestFieldTable_SelfEmbedding(t *testing.T) {
	ft, err := obdict.FieldTableOf[SelfRef](obdict.NewRegistry())
	if err != nil {
		t.Fatalf("field table: %v", err)
	}
	if got := ft.String(); got != "{n: int}" {
		t.Fatalf("got %s", got)
	}
}

func TestFieldTable_Errors(t *testing.T) {
	r := obdict.NewRegistry()
	_, err := r.FieldTable(reflect.TypeFor[int]())
	var ue *obdict.UnsupportedTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("non-struct: expected UnsupportedTypeError, got %v", err)
	}

	type badTag struct {
		_ struct{} `obdict.add:"c"`
	}
	_, err = obdict.FieldTableOf[badTag](r)
	var me *obdict.MalformedTypeDescriptorError
	if !errors.As(err, &me) {
		t.Fatalf("bad tag: expected MalformedTypeDescriptorError, got %v", err)
	}

	type unknownTag struct {
		_ struct{} `obdict.add:"c:nope"`
	}
	_, err = obdict.FieldTableOf[unknownTag](r)
	if !errors.As(err, &me) {
		t.Fatalf("unknown descriptor: expected MalformedTypeDescriptorError, got %v", err)
	}
}

// Bag keeps the retyped and added names outside its struct fields.
type Bag struct {
	Base
	_     struct{} `obdict.ignore:"b" obdict.add:"color:string" obdict.edit:"a:string"`
	extra map[string]any
}

func (b *Bag) GetField(name string) (any, bool) {
	v, ok := b.extra[name]
	return v, ok
}

func (b *Bag) SetField(name string, v any) error {
	if b.extra == nil {
		b.extra = map[string]any{}
	}
	b.extra[name] = v
	return nil
}

func TestFieldStore(t *testing.T) {
	r := obdict.NewRegistry()
	if err := obdict.Register[Bag](r); err != nil {
		t.Fatalf("register: %v", err)
	}

	in := Bag{Base: Base{A: 1, B: "dropped"}, extra: map[string]any{"a": "one", "color": "red"}}
	got, err := r.Dump(in)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"a": "one", "color": "red"}, got); diff != "" {
		t.Fatalf("dump (-want +got):\n%s", diff)
	}

	out, err := obdict.LoadAs[Bag](r, map[string]any{"a": 7, "color": "blue", "b": "x"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.A != 0 || out.B != "" {
		t.Fatalf("struct fields must stay untouched: %+v", out.Base)
	}
	if out.extra["a"] != "7" || out.extra["color"] != "blue" {
		t.Fatalf("store contents: %v", out.extra)
	}
	if _, ok := out.extra["b"]; ok {
		t.Fatalf("ignored name was stored")
	}
}

func TestFieldValues(t *testing.T) {
	r := obdict.NewRegistry()
	nick := "p"
	vals, err := r.FieldValues(&Profile{Name: "n", Nick: &nick, Level: 2})
	if err != nil {
		t.Fatalf("field values: %v", err)
	}
	if len(vals) != 3 {
		t.Fatalf("want 3 entries, got %d", len(vals))
	}
	if vals[0].Name != "name" || vals[0].Value != "n" || !vals[0].Set || vals[0].Type != obdict.String {
		t.Fatalf("name entry: %+v", vals[0])
	}
	if vals[1].Name != "nick" || !vals[1].Set || vals[1].Value.(*string) != &nick {
		t.Fatalf("nick entry: %+v", vals[1])
	}

	vals, err = r.FieldValues(Profile{})
	if err != nil {
		t.Fatalf("field values: %v", err)
	}
	if vals[1].Set {
		t.Fatalf("nil pointer must be reported unset")
	}
}

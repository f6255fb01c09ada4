package obdict_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/obdict"
)

type Pet struct {
	Name string `obdict:"name"`
	Age  int    `obdict:"age"`
}

type Child struct {
	Name string `obdict:"name"`
	Pet  Pet    `obdict:"pet"`
}

func newPetRegistry(t *testing.T) *obdict.Registry {
	t.Helper()
	r := obdict.NewRegistry()
	if err := obdict.Register[Pet](r); err != nil {
		t.Fatalf("register Pet: %v", err)
	}
	if err := obdict.Register[Child](r); err != nil {
		t.Fatalf("register Child: %v", err)
	}
	return r
}

func TestScenario_ChildDump(t *testing.T) {
	r := newPetRegistry(t)
	got, err := r.Dump(Child{Name: "Sarah", Pet: Pet{Name: "Whiskers", Age: 2}})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := map[string]any{
		"name": "Sarah",
		"pet":  map[string]any{"name": "Whiskers", "age": 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_ChildLoad(t *testing.T) {
	r := newPetRegistry(t)
	got, err := obdict.LoadAs[Child](r, map[string]any{
		"name": "John",
		"pet":  map[string]any{"name": "Tiger", "age": 4},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Child{Name: "John", Pet: Pet{Name: "Tiger", Age: 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("load mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_ChildRoundTrip(t *testing.T) {
	r := newPetRegistry(t)
	in := Child{Name: "Ann", Pet: Pet{Name: "Rex", Age: 9}}
	d, err := r.Dump(in)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	out, err := r.Load(obdict.Of[Child](), d)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out != any(in) {
		t.Fatalf("round trip: got %#v want %#v", out, in)
	}
}

func TestScenario_NestedErrorPath(t *testing.T) {
	r := newPetRegistry(t)
	_, err := r.Load(obdict.Of[Child](), map[string]any{
		"name": "John",
		"pet":  map[string]any{"name": "Tiger", "age": "four"},
	})
	var ce *obdict.ConversionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConversionError, got %v", err)
	}
	if ce.Path != "/pet/age" {
		t.Fatalf("path: got %q", ce.Path)
	}
	if obdict.CodeOf(err) != obdict.CodeConversion || obdict.PathOf(err) != "/pet/age" {
		t.Fatalf("code/path helpers: %q %q", obdict.CodeOf(err), obdict.PathOf(err))
	}
}

type Profile struct {
	Name  string  `obdict:"name"`
	Nick  *string `obdict:"nick"`
	Level int     `obdict:"level"`
}

func (Profile) FieldDefaults() map[string]any { return map[string]any{"level": 7} }

func TestScenario_SparseFields(t *testing.T) {
	r := obdict.NewRegistry()
	obdict.MustRegister[Profile](r)

	got, err := r.Dump(Profile{Name: "a", Level: 1})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "a", "level": 1}, got); diff != "" {
		t.Fatalf("unset nick must be omitted (-want +got):\n%s", diff)
	}

	p, err := obdict.LoadAs[Profile](r, map[string]any{"name": "b"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Level != 7 || p.Nick != nil || p.Name != "b" {
		t.Fatalf("defaults not applied: %#v", p)
	}

	p, err = obdict.LoadAs[Profile](r, map[string]any{"name": "c", "nick": "cc", "level": 3})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Nick == nil || *p.Nick != "cc" || p.Level != 3 {
		t.Fatalf("present keys must win over defaults: %#v", p)
	}
}

type Owner struct {
	Name   string         `json:"name"`
	Pets   []Pet          `json:"pets"`
	ByName map[string]Pet `json:"by_name,omitempty"`
	Best   *Pet           `json:"best"`
	Hidden string         `json:"-"`
}

func TestScenario_NestedContainers(t *testing.T) {
	r := newPetRegistry(t)
	obdict.MustRegister[Owner](r)

	best := &Pet{Name: "Rex", Age: 3}
	in := Owner{
		Name:   "Kim",
		Pets:   []Pet{{Name: "Rex", Age: 3}, {Name: "Tom", Age: 1}},
		ByName: map[string]Pet{"tom": {Name: "Tom", Age: 1}},
		Best:   best,
		Hidden: "secret",
	}
	d, err := r.Dump(in)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	want := map[string]any{
		"name": "Kim",
		"pets": []any{
			map[string]any{"name": "Rex", "age": 3},
			map[string]any{"name": "Tom", "age": 1},
		},
		"by_name": map[string]any{"tom": map[string]any{"name": "Tom", "age": 1}},
		"best":    map[string]any{"name": "Rex", "age": 3},
	}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("dump mismatch (-want +got):\n%s", diff)
	}

	out, err := obdict.LoadAs[Owner](r, d)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	in.Hidden = ""
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestScenario_LoadFromYAMLShapedMap(t *testing.T) {
	r := newPetRegistry(t)
	got, err := obdict.LoadAs[Pet](r, map[any]any{"name": "Yaml", "age": 5})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != (Pet{Name: "Yaml", Age: 5}) {
		t.Fatalf("got %#v", got)
	}
}

func TestScenario_IdempotentDump(t *testing.T) {
	r := newPetRegistry(t)
	obdict.MustRegister[Owner](r)
	v := Owner{Name: "x", Pets: []Pet{{Name: "a"}}, ByName: map[string]Pet{"a": {Name: "a"}, "b": {Name: "b"}}}
	a, err := r.Dump(v)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	b, err := r.Dump(v)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("dump not idempotent:\n%s", diff)
	}
}

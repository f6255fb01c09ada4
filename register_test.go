package obdict_test

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/multierr"

	"github.com/reoring/obdict"
)

// Temperature dumps as "21.5C".
type Temperature struct {
	Deg float64
}

func (t Temperature) ToDict(enc *obdict.Encoder) (any, error) {
	return strconv.FormatFloat(t.Deg, 'g', -1, 64) + "C", nil
}

func (t *Temperature) FromDict(dec *obdict.Decoder, data any) error {
	s, ok := data.(string)
	if !ok || !strings.HasSuffix(s, "C") {
		return fmt.Errorf("want a string like 21.5C, got %v", data)
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "C"), 64)
	if err != nil {
		return err
	}
	t.Deg = f
	return nil
}

func TestRegister_MethodScan(t *testing.T) {
	r := obdict.NewRegistry()
	obdict.MustRegister[Temperature](r)
	if ser, de := r.Origin(obdict.Of[Temperature]()); ser != obdict.OriginMethod || de != obdict.OriginMethod {
		t.Fatalf("origins: %v %v", ser, de)
	}

	got, err := r.Dump(Temperature{Deg: 21.5})
	if err != nil || got != "21.5C" {
		t.Fatalf("dump: got v=%v err=%v", got, err)
	}
	v, err := obdict.LoadAs[Temperature](r, "3C")
	if err != nil || v.Deg != 3 {
		t.Fatalf("load: got v=%v err=%v", v, err)
	}

	_, err = obdict.LoadAs[Temperature](r, 3)
	var ce *obdict.ConversionError
	if !errors.As(err, &ce) || ce.Path != "/" {
		t.Fatalf("FromDict errors become ConversionError, got %v", err)
	}
}

func TestRegister_ExplicitOutranksMethods(t *testing.T) {
	r := obdict.NewRegistry()
	err := obdict.Register[Temperature](r, obdict.WithSerializer(func(_ *obdict.Encoder, v any) (any, error) {
		return v.(Temperature).Deg, nil
	}))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ser, de := r.Origin(obdict.Of[Temperature]()); ser != obdict.OriginExplicit || de != obdict.OriginMethod {
		t.Fatalf("origins: %v %v", ser, de)
	}
	if got, _ := r.Dump(Temperature{Deg: 1}); got != 1.0 {
		t.Fatalf("explicit serializer must win, got %v", got)
	}
}

type Tally struct {
	N int `obdict:"n"`
}

func (t *Tally) ToDict(enc *obdict.Encoder) (any, error) {
	return map[string]any{"n": t.N, "kind": "tally"}, nil
}

func TestRegister_MixedSources(t *testing.T) {
	r := obdict.NewRegistry()
	obdict.MustRegister[Tally](r)
	if ser, de := r.Origin(obdict.Of[Tally]()); ser != obdict.OriginMethod || de != obdict.OriginSynthesized {
		t.Fatalf("origins: %v %v", ser, de)
	}
	got, err := r.Dump(Tally{N: 2})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"n": 2, "kind": "tally"}, got); diff != "" {
		t.Fatalf("pointer-receiver ToDict (-want +got):\n%s", diff)
	}
	v, err := obdict.LoadAs[Tally](r, got)
	if err != nil || v.N != 2 {
		t.Fatalf("synthesized load: got v=%v err=%v", v, err)
	}
}

type Code int

func TestRegister_NonStructNeedsConverters(t *testing.T) {
	r := obdict.NewRegistry()
	err := obdict.Register[Code](r)
	var ue *obdict.UnsupportedTypeError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedTypeError, got %v", err)
	}

	err = obdict.Register[Code](r,
		obdict.WithSerializer(func(_ *obdict.Encoder, v any) (any, error) { return fmt.Sprintf("C%d", v.(Code)), nil }),
		obdict.WithDeserializer(func(_ *obdict.Decoder, _ *obdict.Type, data any) (any, error) {
			n, err := strconv.Atoi(strings.TrimPrefix(data.(string), "C"))
			return Code(n), err
		}),
	)
	if err != nil {
		t.Fatalf("register with both converters: %v", err)
	}
	got, _ := r.Dump(Code(7))
	if got != "C7" {
		t.Fatalf("dump: %v", got)
	}
	c, err := obdict.LoadAs[Code](r, "C9")
	if err != nil || c != 9 {
		t.Fatalf("load: got v=%v err=%v", c, err)
	}
}

type LeftCodec struct {
	ID int `obdict:"id"`
}

func (l *LeftCodec) ToDict(enc *obdict.Encoder) (any, error) {
	return map[string]any{"side": "left", "id": l.ID}, nil
}

func (l *LeftCodec) FromDict(dec *obdict.Decoder, data any) error {
	m, ok := data.(map[string]any)
	if !ok {
		return fmt.Errorf("expected mapping, got %T", data)
	}
	v, err := dec.LoadField("id", obdict.Int, m["id"])
	if err != nil {
		return err
	}
	l.ID = v.(int)
	return nil
}

type RightCodec struct {
	Name string `obdict:"name"`
}

func (r *RightCodec) ToDict(enc *obdict.Encoder) (any, error) {
	return map[string]any{"side": "right"}, nil
}

func (r *RightCodec) FromDict(dec *obdict.Decoder, data any) error {
	r.Name = "right"
	return nil
}

// Both embeds two codecs, so neither method is promoted.
type Both struct {
	LeftCodec
	RightCodec
}

func TestRegister_DeepMethodScan(t *testing.T) {
	in := Both{LeftCodec{ID: 1}, RightCodec{Name: "x"}}

	shallow := obdict.NewRegistry()
	obdict.MustRegister[Both](shallow)
	if ser, de := shallow.Origin(obdict.Of[Both]()); ser != obdict.OriginSynthesized || de != obdict.OriginSynthesized {
		t.Fatalf("origins: %v %v", ser, de)
	}
	got, err := shallow.Dump(in)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "x", "id": 1}, got); diff != "" {
		t.Fatalf("ambiguous methods fall back to synthesis (-want +got):\n%s", diff)
	}

	deep := obdict.NewRegistry()
	obdict.MustRegister[Both](deep, obdict.DeepMethodScan(true))
	got, err = deep.Dump(in)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"side": "left", "id": 1}, got); diff != "" {
		t.Fatalf("first ancestor must win (-want +got):\n%s", diff)
	}
	out, err := obdict.LoadAs[Both](deep, map[string]any{"id": 5, "name": "ignored"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.ID != 5 || out.Name != "" {
		t.Fatalf("load through the ancestor FromDict: %+v", out)
	}
}

type PtrBoth struct {
	*LeftCodec
	*RightCodec
}

func TestRegister_DeepMethodScan_NilEmbedded(t *testing.T) {
	r := obdict.NewRegistry()
	obdict.MustRegister[PtrBoth](r, obdict.DeepMethodScan(true))
	got, err := r.Dump(PtrBoth{})
	if err != nil || got != nil {
		t.Fatalf("nil embedded receiver dumps nil: got v=%v err=%v", got, err)
	}
	out, err := obdict.LoadAs[PtrBoth](r, map[string]any{"id": 3})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if out.LeftCodec == nil || out.ID != 3 {
		t.Fatalf("embedded pointer must be allocated: %+v", out)
	}
}

func TestRegisterAll(t *testing.T) {
	r := obdict.NewRegistry()
	err := r.RegisterAll(reflect.TypeFor[Plain](), reflect.TypeFor[Derived](), reflect.TypeFor[func()]())
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("want 2 errors, got %d: %v", len(errs), err)
	}
	var ue *obdict.UnboundFieldError
	if !errors.As(errs[0], &ue) {
		t.Fatalf("first: %v", errs[0])
	}
	var ut *obdict.UnsupportedTypeError
	if !errors.As(errs[1], &ut) {
		t.Fatalf("second: %v", errs[1])
	}
	if _, ok := obdict.SerializerFor[Plain](r); !ok {
		t.Fatalf("successful registrations must stay installed")
	}
}

type Strict struct {
	N int `obdict:"n"`
}

func (s *Strict) Init() error { return errors.New("refusing to construct") }

type Seeded struct {
	N    int      `obdict:"n"`
	Tags []string `obdict:"tags"`
}

func (s *Seeded) Init() error {
	s.N = 5
	s.Tags = []string{"seed"}
	return nil
}

type Touchy struct {
	N int `obdict:"n"`
}

func (t *Touchy) Init() error { panic("touched") }

type Holder struct {
	S Strict `obdict:"s"`
}

func TestInitializer(t *testing.T) {
	r := obdict.NewRegistry()
	if err := r.RegisterAll(reflect.TypeFor[Strict](), reflect.TypeFor[Seeded](), reflect.TypeFor[Touchy](), reflect.TypeFor[Holder]()); err != nil {
		t.Fatalf("register: %v", err)
	}

	s, err := obdict.LoadAs[Seeded](r, map[string]any{"tags": []any{"a"}})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Seeded{N: 5, Tags: []string{"a"}}, s); diff != "" {
		t.Fatalf("Init runs before fields are set (-want +got):\n%s", diff)
	}

	_, err = obdict.LoadAs[Holder](r, map[string]any{"s": map[string]any{"n": 1}})
	var fe *obdict.FieldConstructionError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldConstructionError, got %v", err)
	}
	if fe.Path != "/s" || fe.Err == nil {
		t.Fatalf("unexpected error: %+v", fe)
	}

	_, err = obdict.LoadAs[Touchy](r, map[string]any{})
	if !errors.As(err, &fe) || !strings.Contains(fe.Error(), "touched") {
		t.Fatalf("panics become FieldConstructionError, got %v", err)
	}

	// dumping never constructs
	if _, err := r.Dump(Strict{N: 1}); err != nil {
		t.Fatalf("dump: %v", err)
	}
}

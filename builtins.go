package obdict

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// Built-in scalar descriptors.
var (
	Bool    = Atomic(reflect.TypeFor[bool]())
	String  = Atomic(reflect.TypeFor[string]())
	Int     = Atomic(reflect.TypeFor[int]())
	Int8    = Atomic(reflect.TypeFor[int8]())
	Int16   = Atomic(reflect.TypeFor[int16]())
	Int32   = Atomic(reflect.TypeFor[int32]())
	Int64   = Atomic(reflect.TypeFor[int64]())
	Uint    = Atomic(reflect.TypeFor[uint]())
	Uint8   = Atomic(reflect.TypeFor[uint8]())
	Uint16  = Atomic(reflect.TypeFor[uint16]())
	Uint32  = Atomic(reflect.TypeFor[uint32]())
	Uint64  = Atomic(reflect.TypeFor[uint64]())
	Float32 = Atomic(reflect.TypeFor[float32]())
	Float64 = Atomic(reflect.TypeFor[float64]())
	Number  = Atomic(numberType)
	Any     = Atomic(anyType)
	// TupleAny is the untyped Tuple; loading it keeps every element as-is.
	TupleAny = Atomic(tupleType)
)

func echo(_ *Encoder, v any) (any, error) { return v, nil }

func installBuiltins(r *Registry) {
	for _, t := range []*Type{Bool, String, Int, Int8, Int16, Int32, Int64, Uint, Uint8, Uint16, Uint32, Uint64, Float32, Float64, Number} {
		r.setSerializer(t, echo, OriginBuiltin)
	}
	r.setDeserializer(Bool, loadBool, OriginBuiltin)
	r.setDeserializer(String, loadString, OriginBuiltin)
	for _, t := range []*Type{Int, Int8, Int16, Int32, Int64} {
		r.setDeserializer(t, loadInt, OriginBuiltin)
	}
	for _, t := range []*Type{Uint, Uint8, Uint16, Uint32, Uint64} {
		r.setDeserializer(t, loadUint, OriginBuiltin)
	}
	r.setDeserializer(Float32, loadFloat, OriginBuiltin)
	r.setDeserializer(Float64, loadFloat, OriginBuiltin)
	r.setDeserializer(Number, loadNumber, OriginBuiltin)
	r.setDeserializer(Any, func(_ *Decoder, _ *Type, data any) (any, error) { return data, nil }, OriginBuiltin)

	r.setSerializer(TupleAny, dumpTuple, OriginBuiltin)
	r.setDeserializer(TupleAny, loadTupleAny, OriginBuiltin)

	r.Alias("number", Number)
	r.Alias("tuple", TupleAny)
}

// ---- deserializers ----

func loadBool(_ *Decoder, _ *Type, data any) (any, error) {
	switch x := data.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return nil, fmt.Errorf("expected bool, got %T", data)
}

func loadString(_ *Decoder, _ *Type, data any) (any, error) {
	switch x := data.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), nil
	}
	return nil, fmt.Errorf("expected string, got %T", data)
}

func loadInt(_ *Decoder, t *Type, data any) (any, error) {
	n, err := toInt64(data)
	if err != nil {
		return nil, err
	}
	rt := t.GoType()
	v := reflect.New(rt).Elem()
	if v.OverflowInt(n) {
		return nil, fmt.Errorf("%d overflows %s", n, rt)
	}
	v.SetInt(n)
	return v.Interface(), nil
}

func loadUint(_ *Decoder, t *Type, data any) (any, error) {
	n, err := toUint64(data)
	if err != nil {
		return nil, err
	}
	rt := t.GoType()
	v := reflect.New(rt).Elem()
	if v.OverflowUint(n) {
		return nil, fmt.Errorf("%d overflows %s", n, rt)
	}
	v.SetUint(n)
	return v.Interface(), nil
}

func loadFloat(_ *Decoder, t *Type, data any) (any, error) {
	f, err := toFloat64(data)
	if err != nil {
		return nil, err
	}
	if t.GoType().Kind() == reflect.Float32 {
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return nil, fmt.Errorf("%g overflows float32", f)
		}
		return float32(f), nil
	}
	return f, nil
}

func loadNumber(_ *Decoder, _ *Type, data any) (any, error) {
	switch x := data.(type) {
	case json.Number:
		return x, nil
	case string:
		if _, err := strconv.ParseFloat(x, 64); err != nil {
			return nil, fmt.Errorf("%q is not a number", x)
		}
		return json.Number(x), nil
	case float32:
		return json.Number(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case float64:
		return json.Number(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return json.Number(fmt.Sprint(x)), nil
	}
	return nil, fmt.Errorf("expected number, got %T", data)
}

func dumpTuple(enc *Encoder, v any) (any, error) {
	src := v.(Tuple)
	out := make(Tuple, len(src))
	for i, x := range src {
		d, err := enc.DumpIndex(i, x)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}

func loadTupleAny(dec *Decoder, _ *Type, data any) (any, error) {
	src, ok := sequenceValue(data)
	if !ok {
		return nil, fmt.Errorf("expected sequence, got %T", data)
	}
	out := make(Tuple, src.Len())
	for i := range out {
		v, err := dec.LoadIndex(i, Any, src.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ---- numeric coercion ----

func toInt64(data any) (int64, error) {
	switch x := data.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint, uint8, uint16, uint32, uint64:
		u, _ := toUint64(x)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case float32:
		return floatToInt(float64(x))
	case float64:
		return floatToInt(x)
	case json.Number:
		return parseInt(string(x))
	case string:
		return parseInt(x)
	}
	return 0, fmt.Errorf("expected integer, got %T", data)
}

func toUint64(data any) (uint64, error) {
	switch x := data.(type) {
	case uint:
		return uint64(x), nil
	case uint8:
		return uint64(x), nil
	case uint16:
		return uint64(x), nil
	case uint32:
		return uint64(x), nil
	case uint64:
		return x, nil
	case json.Number:
		return parseUint(string(x))
	case string:
		return parseUint(x)
	}
	n, err := toInt64(data)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%g is not an integer", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%g overflows int64", f)
	}
	return int64(f), nil
}

func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return floatToInt(f)
}

func parseUint(s string) (uint64, error) {
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%d is negative", n)
	}
	return uint64(n), nil
}

func toFloat64(data any) (float64, error) {
	switch x := data.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", x)
		}
		return f, nil
	case int, int8, int16, int32, int64:
		n, _ := toInt64(x)
		return float64(n), nil
	case uint, uint8, uint16, uint32, uint64:
		n, _ := toUint64(x)
		return float64(n), nil
	}
	return 0, fmt.Errorf("expected number, got %T", data)
}

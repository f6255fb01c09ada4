package obdict

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// EnumMember pairs an enum member with the underlying value it dumps to.
type EnumMember[T comparable] struct {
	Member T
	Value  any
}

// Member is shorthand for EnumMember{Member: m, Value: v}.
func Member[T comparable](m T, v any) EnumMember[T] {
	return EnumMember[T]{Member: m, Value: v}
}

// EnumValues pairs each member with its value converted to the underlying
// basic type, so type Color int dumps as an int.
func EnumValues[T comparable](members ...T) []EnumMember[T] {
	out := make([]EnumMember[T], len(members))
	for i, m := range members {
		v := reflect.ValueOf(m)
		var val any = m
		if bt, ok := basicType(v.Kind()); ok {
			val = v.Convert(bt).Interface()
		}
		out[i] = EnumMember[T]{Member: m, Value: val}
	}
	return out
}

// RegisterEnum installs converters mapping each member to its value and back.
// Members and values must be unique. nil r means Default().
func RegisterEnum[T comparable](r *Registry, members ...EnumMember[T]) error {
	r = orDefault(r)
	t := Of[T]()
	if len(members) == 0 {
		return fmt.Errorf("obdict: enum %s has no members", t)
	}
	members = append([]EnumMember[T](nil), members...)
	byMember := make(map[T]any, len(members))
	values := make([]any, 0, len(members))
	for i, m := range members {
		if _, dup := byMember[m.Member]; dup {
			return fmt.Errorf("obdict: enum %s: duplicate member %v", t, m.Member)
		}
		for j := 0; j < i; j++ {
			if valuesEqual(members[j].Value, m.Value) {
				return fmt.Errorf("obdict: enum %s: members %v and %v share value %#v", t, members[j].Member, m.Member, m.Value)
			}
		}
		byMember[m.Member] = m.Value
		values = append(values, m.Value)
	}

	ser := func(enc *Encoder, v any) (any, error) {
		val, ok := byMember[v.(T)]
		if !ok {
			return nil, &InvalidEnumValueError{Path: enc.Path(), Enum: t.String(), Value: v}
		}
		return val, nil
	}
	de := func(dec *Decoder, _ *Type, data any) (any, error) {
		if m, ok := data.(T); ok {
			if _, ok := byMember[m]; ok {
				return m, nil
			}
		}
		for _, m := range members {
			if valuesEqual(m.Value, data) {
				return m.Member, nil
			}
		}
		return nil, &InvalidEnumValueError{Path: dec.Path(), Enum: t.String(), Value: data}
	}
	r.setSerializer(t, ser, OriginEnum)
	r.setDeserializer(t, de, OriginEnum)
	r.mu.Lock()
	r.enums[t] = values
	r.mu.Unlock()
	r.log.V(1).Info("registered enum", "type", t.String(), "members", len(members))
	return nil
}

// valuesEqual compares enum values. Numbers compare by value across Go
// numeric types and json.Number, exactly when both are integers; a number
// never equals a string.
func valuesEqual(a, b any) bool {
	an, aok := numericValue(a)
	bn, bok := numericValue(b)
	if aok || bok {
		return aok && bok && an.equal(bn)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.TypeOf(a).Comparable() && reflect.TypeOf(b).Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// number holds an integer as sign and magnitude, or a float.
type number struct {
	integer bool
	neg     bool
	mag     uint64
	f       float64
}

func (n number) equal(o number) bool {
	if n.integer && o.integer {
		return n.neg == o.neg && n.mag == o.mag
	}
	return n.f == o.f
}

func intNumber(i int64) number {
	if i < 0 {
		return number{integer: true, neg: true, mag: uint64(-(i + 1)) + 1, f: float64(i)}
	}
	return number{integer: true, mag: uint64(i), f: float64(i)}
}

func uintNumber(u uint64) number {
	return number{integer: true, mag: u, f: float64(u)}
}

func numericValue(v any) (number, bool) {
	switch x := v.(type) {
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return intNumber(i), true
		}
		if u, err := strconv.ParseUint(string(x), 10, 64); err == nil {
			return uintNumber(u), true
		}
		f, err := x.Float64()
		return number{f: f}, err == nil
	case int, int8, int16, int32, int64:
		return intNumber(reflect.ValueOf(x).Int()), true
	case uint, uint8, uint16, uint32, uint64:
		return uintNumber(reflect.ValueOf(x).Uint()), true
	case float32:
		return number{f: float64(x)}, true
	case float64:
		return number{f: x}, true
	}
	return number{}, false
}

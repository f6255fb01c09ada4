package codec

import (
	"fmt"
	"time"

	"github.com/reoring/obdict"
)

// RegisterTime installs converters for time.Time (RFC3339 strings, UTC
// canonical on dump) and time.Duration (Go duration strings such as "1h30m").
// nil r means obdict.Default().
func RegisterTime(r *obdict.Registry) {
	if r == nil {
		r = obdict.Default()
	}
	obdict.SetSerializerFor(r, func(_ *obdict.Encoder, t time.Time) (any, error) {
		return formatRFC3339Canonical(t), nil
	})
	obdict.SetDeserializerFor(r, func(_ *obdict.Decoder, data any) (time.Time, error) {
		switch x := data.(type) {
		case time.Time:
			// YAML may resolve timestamps itself
			return x, nil
		case string:
			t, err := parseRFC3339(x)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid RFC3339 time %q", x)
			}
			return t, nil
		}
		return time.Time{}, fmt.Errorf("expected RFC3339 string, got %T", data)
	})

	obdict.SetSerializerFor(r, func(_ *obdict.Encoder, d time.Duration) (any, error) {
		return d.String(), nil
	})
	obdict.SetDeserializerFor(r, func(dec *obdict.Decoder, data any) (time.Duration, error) {
		if s, ok := data.(string); ok {
			return time.ParseDuration(s)
		}
		// bare numbers are nanoseconds
		n, err := dec.Load(obdict.Int64, data)
		if err != nil {
			return 0, err
		}
		return time.Duration(n.(int64)), nil
	})
}

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	// Normalize to UTC and format using RFC3339Nano (Go trims trailing zeros)
	return t.UTC().Format(time.RFC3339Nano)
}

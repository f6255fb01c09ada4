package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/reoring/obdict"
)

// MarshalYAML dumps v and encodes it as a YAML document.
func MarshalYAML(v any, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	d, err := o.reg.Dump(v)
	if err != nil {
		return nil, err
	}
	return encodeYAML(d, o)
}

// UnmarshalYAML decodes one YAML document and loads it into a value of t.
func UnmarshalYAML(t *obdict.Type, data []byte, opts ...Option) (any, error) {
	o := newOptions(opts)
	plain, err := decodeYAML(data)
	if err != nil {
		return nil, err
	}
	return o.reg.Load(t, plain)
}

// UnmarshalYAMLAs decodes one YAML document and loads it into T.
func UnmarshalYAMLAs[T any](data []byte, opts ...Option) (T, error) {
	o := newOptions(opts)
	plain, err := decodeYAML(data)
	if err != nil {
		var zero T
		return zero, err
	}
	return obdict.LoadAs[T](o.reg, plain)
}

func encodeYAML(d any, o *options) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(o.yamlIndent)
	if err := enc.Encode(yamlNumbers(d)); err != nil {
		return nil, fmt.Errorf("codec: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("codec: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeYAML(data []byte) (any, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var plain any
	if err := dec.Decode(&plain); err != nil {
		if errors.Is(err, io.EOF) {
			// empty document
			return nil, nil
		}
		return nil, fmt.Errorf("codec: decode yaml: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("codec: decode yaml: expected a single document")
	}
	return yamlNormalize(plain), nil
}

// yamlToStringMap normalizes yaml-decoded maps into map[string]any recursively.
// Non-string keys are formatted so integer and boolean keys survive.
func yamlToStringMap(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNormalize(vv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			ks, ok := k.(string)
			if !ok {
				ks = fmt.Sprint(k)
			}
			out[ks] = yamlNormalize(vv)
		}
		return out
	default:
		return nil
	}
}

func yamlNormalize(v any) any {
	switch t := v.(type) {
	case map[string]any, map[any]any:
		return yamlToStringMap(t)
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNormalize(t[i])
		}
		return arr
	default:
		return v
	}
}

// yamlNumbers rewrites json.Number leaves, which yaml.v3 would emit as quoted
// strings, into int64 or float64.
func yamlNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if n, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return string(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = yamlNumbers(vv)
		}
		return out
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNumbers(t[i])
		}
		return arr
	case obdict.Tuple:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = yamlNumbers(t[i])
		}
		return arr
	default:
		return v
	}
}

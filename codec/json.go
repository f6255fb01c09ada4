// Package codec moves obdict values across text boundaries. Values are dumped
// to plain data through a Registry and encoded as JSON or YAML; decoding
// produces plain data first and then loads it into the requested descriptor.
package codec

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/reoring/obdict"
)

// MarshalJSON dumps v and encodes it as JSON. Object keys are sorted unless
// WithUnorderedMaps is given.
func MarshalJSON(v any, opts ...Option) ([]byte, error) {
	o := newOptions(opts)
	d, err := o.reg.Dump(v)
	if err != nil {
		return nil, err
	}
	return encodeJSON(d, o)
}

// UnmarshalJSON decodes data and loads it into a value of t.
func UnmarshalJSON(t *obdict.Type, data []byte, opts ...Option) (any, error) {
	o := newOptions(opts)
	plain, err := decodeJSON(data, o)
	if err != nil {
		return nil, err
	}
	return o.reg.Load(t, plain)
}

// UnmarshalJSONAs decodes data and loads it into T.
func UnmarshalJSONAs[T any](data []byte, opts ...Option) (T, error) {
	o := newOptions(opts)
	plain, err := decodeJSON(data, o)
	if err != nil {
		var zero T
		return zero, err
	}
	return obdict.LoadAs[T](o.reg, plain)
}

func encodeJSON(d any, o *options) ([]byte, error) {
	var fns []json.EncodeOptionFunc
	if o.unordered {
		fns = append(fns, json.UnorderedMap())
	}
	if !o.escapeHTML {
		fns = append(fns, json.DisableHTMLEscape())
	}
	var (
		b   []byte
		err error
	)
	if o.prefix != "" || o.indent != "" {
		b, err = json.MarshalIndentWithOption(d, o.prefix, o.indent, fns...)
	} else {
		b, err = json.MarshalWithOption(d, fns...)
	}
	if err != nil {
		return nil, fmt.Errorf("codec: encode json: %w", err)
	}
	return b, nil
}

// decodeJSON parses exactly one JSON document into plain data.
func decodeJSON(data []byte, o *options) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if o.useNumber {
		dec.UseNumber()
	}
	var plain any
	if err := dec.Decode(&plain); err != nil {
		return nil, fmt.Errorf("codec: decode json: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("codec: decode json: trailing data after document")
	}
	if o.rejectDups {
		if err := checkDuplicateKeys(data); err != nil {
			return nil, err
		}
	}
	return plain, nil
}

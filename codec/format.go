package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/reoring/obdict"
)

// Format is a text encoding of plain data.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat accepts json, j, yaml, yml and y (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json", "j":
		return FormatJSON, nil
	case "yaml", "yml", "y":
		return FormatYAML, nil
	}
	return 0, fmt.Errorf("codec: unknown format %q", s)
}

// FormatOf guesses the format from a file name, defaulting to JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Encode dumps v and encodes it in format f.
func Encode(f Format, v any, opts ...Option) ([]byte, error) {
	switch f {
	case FormatJSON:
		return MarshalJSON(v, opts...)
	case FormatYAML:
		return MarshalYAML(v, opts...)
	}
	return nil, fmt.Errorf("codec: unknown format %s", f)
}

// Decode parses data in format f and loads it into a value of t.
func Decode(f Format, t *obdict.Type, data []byte, opts ...Option) (any, error) {
	switch f {
	case FormatJSON:
		return UnmarshalJSON(t, data, opts...)
	case FormatYAML:
		return UnmarshalYAML(t, data, opts...)
	}
	return nil, fmt.Errorf("codec: unknown format %s", f)
}

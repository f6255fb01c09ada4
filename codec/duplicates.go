package codec

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// CodeDuplicateKey is the code of DuplicateKeyError.
const CodeDuplicateKey = "duplicate_key"

// DuplicateKeyError reports an object key that appears twice in one JSON
// object. Path is the JSON Pointer of the second occurrence.
type DuplicateKeyError struct {
	Path string
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("codec: duplicate key %q at %s", e.Key, e.Path)
}

func (e *DuplicateKeyError) Code() string { return CodeDuplicateKey }

type dupFrame struct {
	object    bool
	keys      map[string]struct{}
	expectKey bool
	key       string
	next      int
	path      string
}

var tokenEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// checkDuplicateKeys walks the tokens of a well-formed document and returns
// the first repeated key.
func checkDuplicateKeys(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var stack []dupFrame

	// child returns the pointer of the value about to start.
	child := func() string {
		if len(stack) == 0 {
			return ""
		}
		top := &stack[len(stack)-1]
		if top.object {
			top.expectKey = true
			return top.path + "/" + tokenEscaper.Replace(top.key)
		}
		p := top.path + "/" + strconv.Itoa(top.next)
		top.next++
		return p
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("codec: decode json: %w", err)
		}
		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, dupFrame{object: true, keys: map[string]struct{}{}, expectKey: true, path: child()})
			case '[':
				stack = append(stack, dupFrame{path: child()})
			case '}', ']':
				stack = stack[:len(stack)-1]
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].expectKey {
				top := &stack[n-1]
				if _, ok := top.keys[v]; ok {
					return &DuplicateKeyError{Path: top.path + "/" + tokenEscaper.Replace(v), Key: v}
				}
				top.keys[v] = struct{}{}
				top.key, top.expectKey = v, false
				continue
			}
			child()
		default:
			child()
		}
	}
}

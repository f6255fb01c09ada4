package obdict

import (
	"strconv"
	"strings"
)

// pointer is a JSON Pointer kept as escaped reference tokens. Appends always
// copy so sibling branches never share a backing array.
type pointer []string

func (p pointer) field(name string) pointer {
	// escape '~' -> '~0', '/' -> '~1' per RFC6901
	esc := strings.ReplaceAll(strings.ReplaceAll(name, "~", "~0"), "/", "~1")
	return append(p[:len(p):len(p)], esc)
}

func (p pointer) index(i int) pointer {
	return append(p[:len(p):len(p)], strconv.Itoa(i))
}

func (p pointer) String() string {
	if len(p) == 0 {
		return "/"
	}
	return "/" + strings.Join(p, "/")
}

// SplitPointer decodes a JSON Pointer into its unescaped reference tokens.
// "" and "/" both denote the root.
func SplitPointer(ptr string) []string {
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		parts = append(parts, strings.ReplaceAll(strings.ReplaceAll(p, "~1", "/"), "~0", "~"))
	}
	return parts
}

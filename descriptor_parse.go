package obdict

import (
	"fmt"
	"strings"
)

// ParseType parses a descriptor expression:
//
//	expr  := name | "seq[" expr "]" | "map[" expr "," expr "]" | "tuple[" [expr {"," expr}] "]"
//
// Names resolve to registered atomic descriptors (for example int, string,
// any, number or main.Pet) or to aliases added with Alias.
func (r *Registry) ParseType(expr string) (*Type, error) {
	p := &typeParser{reg: r, src: expr}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.errorf("unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

// ParseType parses expr against the default registry.
func ParseType(expr string) (*Type, error) { return Default().ParseType(expr) }

type typeParser struct {
	reg *Registry
	src string
	pos int
}

func (p *typeParser) errorf(format string, args ...any) error {
	return &MalformedTypeDescriptorError{Descriptor: p.src, Reason: fmt.Sprintf(format, args...) + fmt.Sprintf(" at offset %d", p.pos)}
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) name() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("[], ", rune(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *typeParser) parse() (*Type, error) {
	n := p.name()
	if n == "" {
		return nil, p.errorf("expected a type")
	}
	if p.pos < len(p.src) && p.src[p.pos] == '[' {
		var kind Kind
		switch n {
		case "seq":
			kind = KindSeq
		case "map":
			kind = KindMap
		case "tuple":
			kind = KindTuple
		default:
			return nil, p.errorf("%s is not a parametric kind", n)
		}
		p.pos++
		args, err := p.args()
		if err != nil {
			return nil, err
		}
		return Parametric(kind, args...)
	}
	t, ok := p.reg.Lookup(n)
	if !ok {
		return nil, p.errorf("unknown type %s", n)
	}
	return t, nil
}

// args parses a bracketed list after the opening '['.
func (p *typeParser) args() ([]*Type, error) {
	var out []*Type
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return out, nil
	}
	for {
		t, err := p.parse()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.errorf("unterminated type arguments")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return out, nil
		default:
			return nil, p.errorf("unexpected %q", p.src[p.pos])
		}
	}
}

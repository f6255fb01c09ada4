package codec

import "github.com/reoring/obdict"

// Option configures a boundary call.
type Option func(*options)

type options struct {
	reg        *obdict.Registry
	prefix     string
	indent     string
	unordered  bool
	useNumber  bool
	escapeHTML bool
	yamlIndent int
	rejectDups bool
}

func newOptions(opts []Option) *options {
	o := &options{escapeHTML: true, yamlIndent: 2}
	for _, fn := range opts {
		fn(o)
	}
	if o.reg == nil {
		o.reg = obdict.Default()
	}
	return o
}

// WithRegistry selects the registry used for dump and load. The default is
// obdict.Default().
func WithRegistry(r *obdict.Registry) Option {
	return func(o *options) { o.reg = r }
}

// WithIndent pretty-prints JSON output.
func WithIndent(prefix, indent string) Option {
	return func(o *options) { o.prefix, o.indent = prefix, indent }
}

// WithUnorderedMaps skips sorting object keys on JSON output.
func WithUnorderedMaps() Option {
	return func(o *options) { o.unordered = true }
}

// WithUseNumber decodes JSON numbers as json.Number instead of float64.
func WithUseNumber(on bool) Option {
	return func(o *options) { o.useNumber = on }
}

// WithEscapeHTML controls escaping of <, > and & in JSON strings (on by
// default).
func WithEscapeHTML(on bool) Option {
	return func(o *options) { o.escapeHTML = on }
}

// WithYAMLIndent sets the YAML indentation width (2 by default).
func WithYAMLIndent(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.yamlIndent = n
		}
	}
}

// WithRejectDuplicateKeys fails JSON decoding with a DuplicateKeyError when
// an object repeats a key. By default the last occurrence wins. YAML input
// always rejects repeated keys.
func WithRejectDuplicateKeys(on bool) Option {
	return func(o *options) { o.rejectDups = on }
}

package obdict

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/obdict/i18n"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeUnsupportedType     = "unsupported_type"
	CodeMalformedDescriptor = "malformed_descriptor"
	CodeArityMismatch       = "arity_mismatch"
	CodeInvalidEnumValue    = "invalid_enum_value"
	CodeFieldConstruction   = "field_construction"
	CodeMaxDepthExceeded    = "max_depth_exceeded"
	CodeCycle               = "cycle"
	CodeConversion          = "conversion"
	CodeUnboundField        = "unbound_field"
)

// Coded is implemented by every error raised by this package.
type Coded interface {
	error
	Code() string
}

// located errors carry the JSON Pointer of the value being converted. User
// converter errors that are not located get wrapped in a ConversionError.
type located interface {
	Coded
	location() string
}

// UnsupportedTypeError reports a runtime type (on dump) or target descriptor
// (on load) that has no converter and no built-in kind rule.
type UnsupportedTypeError struct {
	Path string
	Type string
	Op   string // "dump", "load" or the registration step
}

func (e *UnsupportedTypeError) Error() string {
	return render(CodeUnsupportedType, e.Path, fmt.Sprintf("%s %s", e.Op, e.Type))
}
func (e *UnsupportedTypeError) Code() string     { return CodeUnsupportedType }
func (e *UnsupportedTypeError) location() string { return e.Path }

// MalformedTypeDescriptorError reports a parametric descriptor with the wrong
// nested-type arity for its kind, or an unparsable descriptor expression.
type MalformedTypeDescriptorError struct {
	Descriptor string
	Reason     string
}

func (e *MalformedTypeDescriptorError) Error() string {
	return render(CodeMalformedDescriptor, "", fmt.Sprintf("%s: %s", e.Descriptor, e.Reason))
}
func (e *MalformedTypeDescriptorError) Code() string { return CodeMalformedDescriptor }

// ArityMismatchError reports tuple or array input whose length differs from
// the descriptor.
type ArityMismatchError struct {
	Path string
	Type string
	Want int
	Got  int
}

func (e *ArityMismatchError) Error() string {
	return render(CodeArityMismatch, e.Path, fmt.Sprintf("%s wants %d elements, got %d", e.Type, e.Want, e.Got))
}
func (e *ArityMismatchError) Code() string     { return CodeArityMismatch }
func (e *ArityMismatchError) location() string { return e.Path }

// InvalidEnumValueError reports a value with no matching enum member.
type InvalidEnumValueError struct {
	Path  string
	Enum  string
	Value any
}

func (e *InvalidEnumValueError) Error() string {
	return render(CodeInvalidEnumValue, e.Path, fmt.Sprintf("%s has no member %#v", e.Enum, e.Value))
}
func (e *InvalidEnumValueError) Code() string     { return CodeInvalidEnumValue }
func (e *InvalidEnumValueError) location() string { return e.Path }

// FieldConstructionError reports a type that could not be constructed for
// default deserialization.
type FieldConstructionError struct {
	Path string
	Type string
	Err  error
}

func (e *FieldConstructionError) Error() string {
	d := e.Type
	if e.Err != nil {
		d += ": " + e.Err.Error()
	}
	return render(CodeFieldConstruction, e.Path, d)
}
func (e *FieldConstructionError) Code() string     { return CodeFieldConstruction }
func (e *FieldConstructionError) Unwrap() error    { return e.Err }
func (e *FieldConstructionError) location() string { return e.Path }

// MaxDepthExceededError reports nesting deeper than the registry limit.
type MaxDepthExceededError struct {
	Path  string
	Limit int
}

func (e *MaxDepthExceededError) Error() string {
	return render(CodeMaxDepthExceeded, e.Path, fmt.Sprintf("limit %d", e.Limit))
}
func (e *MaxDepthExceededError) Code() string     { return CodeMaxDepthExceeded }
func (e *MaxDepthExceededError) location() string { return e.Path }

// CycleError reports a pointer, slice or map reached again while it is still
// being dumped. First is the path where it was entered.
type CycleError struct {
	Path  string
	Type  string
	First string
}

func (e *CycleError) Error() string {
	return render(CodeCycle, e.Path, fmt.Sprintf("%s first seen at %s", e.Type, e.First))
}
func (e *CycleError) Code() string     { return CodeCycle }
func (e *CycleError) location() string { return e.Path }

// ConversionError reports data that a converter could not turn into the
// target type, or any error returned by a user converter.
type ConversionError struct {
	Path string
	Type string
	Err  error
}

func (e *ConversionError) Error() string {
	d := e.Type
	if e.Err != nil {
		d += ": " + e.Err.Error()
	}
	return render(CodeConversion, e.Path, d)
}
func (e *ConversionError) Code() string     { return CodeConversion }
func (e *ConversionError) Unwrap() error    { return e.Err }
func (e *ConversionError) location() string { return e.Path }

// UnboundFieldError reports a Field Table entry that maps to neither a struct
// field nor a FieldStore.
type UnboundFieldError struct {
	Type   string
	Field  string
	Reason string
}

func (e *UnboundFieldError) Error() string {
	d := e.Type + "." + e.Field
	if e.Reason != "" {
		d += ": " + e.Reason
	}
	return render(CodeUnboundField, "", d)
}
func (e *UnboundFieldError) Code() string { return CodeUnboundField }

// CodeOf returns the code of the first Coded error in err's chain, or "".
func CodeOf(err error) string {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// PathOf returns the JSON Pointer recorded on err, or "" when none is known.
func PathOf(err error) string {
	var l located
	if errors.As(err, &l) {
		return l.location()
	}
	return ""
}

func render(code, path, detail string) string {
	b := &strings.Builder{}
	b.WriteString("obdict: ")
	b.WriteString(i18n.T(code, nil))
	if detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if path != "" {
		// e.g. conversion at /pet/age
		fmt.Fprintf(b, " (at %s)", path)
	}
	return b.String()
}

package compiler

import (
	"fmt"
	"strings"
)

// ErrorKind classifies why a compilation was aborted.
type ErrorKind int

const (
	// ErrStructural: element in an illegal position, or malformed XML.
	ErrStructural ErrorKind = iota + 1
	// ErrAttribute: unknown attribute or a value failing its type or range.
	ErrAttribute
	// ErrRequired: a mandatory attribute is missing.
	ErrRequired
	// ErrCrossField: an attribute conflicts with another field.
	ErrCrossField
	// ErrResource: the output buffer could not grow.
	ErrResource
	// ErrLookup: unknown slave type, module parameter or init command source.
	ErrLookup
)

func (k ErrorKind) String() string {
	switch k {
	case ErrStructural:
		return "structural"
	case ErrAttribute:
		return "attribute"
	case ErrRequired:
		return "required"
	case ErrCrossField:
		return "cross-field"
	case ErrResource:
		return "resource"
	case ErrLookup:
		return "lookup"
	default:
		return "unknown"
	}
}

// Error is the diagnostic of an aborted compilation.
type Error struct {
	Kind    ErrorKind
	Element string
	Attr    string
	Value   string
	Line    int
	Column  int
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Element != "" {
		fmt.Fprintf(&b, "%s: ", e.Element)
	}
	if e.Attr != "" {
		fmt.Fprintf(&b, "attribute %s=%q: ", e.Attr, e.Value)
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Package diag implements the error taxonomy shared by every compiler
// stage. A *Diagnostic is the only error type the core returns; it carries
// the ordered span chain the host needs to render a human-readable message
// or a machine-readable one, but never formats for display itself.
package diag

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind is one of the seven taxonomy buckets from the error handling design.
type Kind string

const (
	Io       Kind = "Io"
	Yaml     Kind = "Yaml"
	Template Kind = "Template"
	Schema   Kind = "Schema"
	IrGen    Kind = "IrGen"
	Policy   Kind = "Policy"
	Internal Kind = "Internal"
)

// Span is a byte range within the original manifest, retained for
// diagnostics across every stage boundary.
type Span struct {
	Origin string `json:"origin"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Length int    `json:"length"`
}

func (s Span) String() string {
	if s.Origin == "" && s.Line == 0 && s.Column == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", s.Origin, s.Line, s.Column)
}

// Diagnostic is the single error value every stage returns. Code names one
// of the taxonomy's named faults (e.g. "DuplicateRule", "CircularDependency");
// it is stable and suitable for machine matching, unlike Message.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Spans   []Span `json:"spans,omitempty"`
	Snippet string `json:"snippet,omitempty"`
	Hint    string `json:"hint,omitempty"`
	cause   error
}

// New constructs a Diagnostic. spans is the ordered chain (innermost first).
func New(kind Kind, code, message string, spans ...Span) *Diagnostic {
	return &Diagnostic{Kind: kind, Code: code, Message: message, Spans: spans}
}

// Wrap constructs a Diagnostic from an underlying error, preserving it for
// errors.Unwrap so callers can still match sentinel errors from lower layers.
func Wrap(kind Kind, code string, err error, spans ...Span) *Diagnostic {
	return &Diagnostic{Kind: kind, Code: code, Message: err.Error(), Spans: spans, cause: err}
}

func (d *Diagnostic) WithHint(hint string) *Diagnostic {
	d.Hint = hint
	return d
}

func (d *Diagnostic) WithSnippet(snippet string) *Diagnostic {
	d.Snippet = snippet
	return d
}

func (d *Diagnostic) WithSpan(s Span) *Diagnostic {
	d.Spans = append(d.Spans, s)
	return d
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s: %s", d.Kind, d.Code, d.Message)
	if len(d.Spans) > 0 {
		fmt.Fprintf(&b, " (%s)", d.Spans[0])
	}
	if d.Hint != "" {
		fmt.Fprintf(&b, "\nhint: %s", d.Hint)
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error {
	return d.cause
}

// JSON renders the machine-readable form required by spec §6.
func (d *Diagnostic) JSON() ([]byte, error) {
	return json.Marshal(d)
}

// PreserveOrWrap returns err's own Diagnostic unchanged if it already
// carries one (e.g. a Policy-kind violation raised deep inside a template
// function call), so that a wrapping call site doesn't flatten it into its
// own Kind. Only when err carries no Diagnostic yet does it get wrapped as
// kind/code.
func PreserveOrWrap(kind Kind, code string, err error, spans ...Span) *Diagnostic {
	if d, ok := As(err); ok {
		return d
	}
	return Wrap(kind, code, err, spans...)
}

// As reports whether err is (or wraps) a *Diagnostic, the way errors.As
// would, without forcing every call site to declare a local variable.
func As(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	for err != nil {
		if dd, ok := err.(*Diagnostic); ok {
			d = dd
			return d, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}

// Package astconv converts generic yamldoc.Node scalars, sequences, and
// mappings into tmpl.Value, the dynamic type the template engine's scope
// stack and standard library operate on. It is the single place that
// interprets YAML 1.2 scalar tags (spec §4.2: 1.1-only interpretations such
// as yes/no booleans are deliberately not honoured here).
package astconv

import (
	"strconv"

	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/tmpl"
	"github.com/leynos/netsuke/internal/yamldoc"
)

// ToValue converts a Document node into a tmpl.Value, resolving only the
// YAML 1.2 core scalar tags (!!str, !!int, !!float, !!bool, !!null).
// Anything else (1.1-only forms like bare `yes`/`no`, octal-with-leading-
// zero) is left as a plain string, per spec §4.2.
func ToValue(n *yamldoc.Node) tmpl.Value {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yamldoc.Scalar:
		return scalarValue(n)
	case yamldoc.Sequence:
		out := make([]tmpl.Value, len(n.Items))
		for i, it := range n.Items {
			out[i] = ToValue(it)
		}
		return out
	case yamldoc.Mapping:
		out := make(map[string]tmpl.Value, len(n.Entries))
		for _, e := range n.Entries {
			if e.Key.Kind == yamldoc.Scalar {
				out[e.Key.Scalar] = ToValue(e.Value)
			}
		}
		return out
	default:
		return nil
	}
}

func scalarValue(n *yamldoc.Node) tmpl.Value {
	switch n.Tag {
	case "!!null":
		return nil
	case "!!bool":
		switch n.Scalar {
		case "true":
			return true
		case "false":
			return false
		}
		return n.Scalar
	case "!!int":
		if i, err := strconv.ParseInt(n.Scalar, 10, 64); err == nil {
			return i
		}
		return n.Scalar
	case "!!float":
		if f, err := strconv.ParseFloat(n.Scalar, 64); err == nil {
			return f
		}
		return n.Scalar
	default:
		return n.Scalar
	}
}

// String requires n to be a scalar node and returns its raw text, the
// convention every template-bearing string field uses: the raw YAML text
// is carried unevaluated into the AST and rendered later, at S4.4.2.
func String(n *yamldoc.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	if n.Kind != yamldoc.Scalar {
		return "", diag.New(diag.Schema, "WrongType", "expected a scalar string", n.Span)
	}
	return n.Scalar, nil
}

// StringOrList normalizes the "string-or-list" convenience shape (spec §9)
// into a []string of raw (unrendered) text immediately, removing the
// variance from every downstream consumer.
func StringOrList(n *yamldoc.Node) ([]string, []diag.Span, error) {
	if n == nil {
		return nil, nil, nil
	}
	switch n.Kind {
	case yamldoc.Scalar:
		return []string{n.Scalar}, []diag.Span{n.Span}, nil
	case yamldoc.Sequence:
		out := make([]string, len(n.Items))
		spans := make([]diag.Span, len(n.Items))
		for i, it := range n.Items {
			s, err := String(it)
			if err != nil {
				return nil, nil, err
			}
			out[i] = s
			spans[i] = it.Span
		}
		return out, spans, nil
	default:
		return nil, nil, diag.New(diag.Schema, "WrongType",
			"expected a string or a list of strings", n.Span)
	}
}

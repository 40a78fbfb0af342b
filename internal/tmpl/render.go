package tmpl

import (
	"fmt"
	"strings"
)

// Segment is one piece of a rendered string: either literal source text, or
// the result of one {{ ... }} interpolation site. Command canonicalization
// (S5) needs the Raw/Placeholder distinction to know which segments to
// shell-quote; every other string field just flattens the segments.
type Segment struct {
	Literal     string
	IsInterp    bool
	Value       string
	Raw         bool // the `raw` filter suppresses shell-escaping at canonicalization time
	Placeholder bool // an `ins`/`outs` recipe placeholder, preserved verbatim through every stage
}

// Rendered is the output of rendering one string-typed AST field.
type Rendered struct {
	Segments      []Segment
	Impure        bool
	Externalities []Externality
}

// Flatten concatenates every segment's text, the representation used by
// every AST field except a Command or Script recipe (which canonicalizes
// segment by segment instead — see the ir package).
func (r Rendered) Flatten() string {
	var b strings.Builder
	for _, s := range r.Segments {
		if s.IsInterp {
			if s.Placeholder {
				b.WriteString("{{ " + s.Value + " }}")
			} else {
				b.WriteString(s.Value)
			}
		} else {
			b.WriteString(s.Literal)
		}
	}
	return b.String()
}

// Render walks src looking for {{ expr }} interpolation sites and evaluates
// each under scope. A stray `{%` anywhere is a Template error: spec §4.3
// permits no structural directives outside foreach/when, and §4.4.2 only
// ever renders string-typed fields through {{ }} interpolation.
func Render(src string, scope *Scope, env *Env) (Rendered, error) {
	if strings.Contains(src, "{%") {
		return Rendered{}, fmt.Errorf("unsupported structural directive '{%%' in string field: %q", src)
	}

	var out Rendered
	rest := src
	for {
		start := strings.Index(rest, "{{")
		if start == -1 {
			out.Segments = append(out.Segments, Segment{Literal: rest})
			return out, nil
		}
		if start > 0 {
			out.Segments = append(out.Segments, Segment{Literal: rest[:start]})
		}
		end := strings.Index(rest[start:], "}}")
		if end == -1 {
			return Rendered{}, fmt.Errorf("unterminated '{{' interpolation in %q", src)
		}
		end += start
		exprSrc := strings.TrimSpace(rest[start+2 : end])

		expr, err := Parse(exprSrc)
		if err != nil {
			return Rendered{}, fmt.Errorf("rendering %q: %w", src, err)
		}

		if id, ok := expr.(*identExpr); ok && (id.name == "ins" || id.name == "outs") {
			out.Segments = append(out.Segments, Segment{IsInterp: true, Placeholder: true, Value: id.name})
			rest = rest[end+2:]
			continue
		}

		ctx := &evalCtx{}
		v, err := expr.eval(scope, env, ctx)
		if err != nil {
			return Rendered{}, fmt.Errorf("rendering %q: %w", src, err)
		}
		if ctx.impure {
			out.Impure = true
			out.Externalities = append(out.Externalities, ctx.externalities...)
		}

		raw := false
		if f, ok := expr.(*filterExpr); ok && f.name == "raw" {
			raw = true
		}

		out.Segments = append(out.Segments, Segment{IsInterp: true, Value: Stringify(v), Raw: raw})
		rest = rest[end+2:]
	}
}

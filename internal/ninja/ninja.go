// Package ninja implements stage S6: rendering a validated ir.BuildGraph as
// a Ninja build file (spec §4.6). It is a pure BuildGraph -> string
// transform; nothing here touches the filesystem.
package ninja

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leynos/netsuke/internal/ir"
)

// Synthesize renders graph as a complete Ninja manifest. Action rule names
// are derived from the action's content hash so that two compiles of the
// same manifest produce byte-identical output (spec §4.6, §9 determinism).
func Synthesize(graph *ir.BuildGraph) (string, error) {
	var b strings.Builder
	b.WriteString("# Generated by netsuke. Do not edit by hand.\n\n")

	ids := make([]ir.ActionId, 0, len(graph.Actions))
	for id := range graph.Actions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		writeRule(&b, graph.Actions[id])
	}

	if needsAlwaysSentinel(graph.Edges) {
		b.WriteString("rule __netsuke_always_rule__\n  command = true\n\n")
		b.WriteString("build " + alwaysSentinel + ": __netsuke_always_rule__\n\n")
	}

	for _, e := range graph.Edges {
		writeEdge(&b, e)
	}

	if len(graph.Defaults) > 0 {
		b.WriteString("default")
		for _, d := range graph.Defaults {
			b.WriteString(" " + escapePath(d))
		}
		b.WriteString("\n")
	}

	return b.String(), nil
}

func ruleName(id ir.ActionId) string {
	short := string(id)
	if len(short) > 12 {
		short = short[:12]
	}
	return "action_" + short
}

func writeRule(b *strings.Builder, a *ir.Action) {
	fmt.Fprintf(b, "rule %s\n", ruleName(a.ID))
	fmt.Fprintf(b, "  command = %s\n", substitutePlaceholders(a.Recipe))
	if a.Description != "" {
		fmt.Fprintf(b, "  description = %s\n", a.Description)
	}
	if a.DepsFormat != "" {
		fmt.Fprintf(b, "  deps = %s\n", a.DepsFormat)
	}
	if a.Pool != "" {
		fmt.Fprintf(b, "  pool = %s\n", a.Pool)
	}
	b.WriteString("\n")
}

// substitutePlaceholders turns the canonicalized "{{ ins }}"/"{{ outs }}"
// tokens left by ir.Canonicalize into Ninja's $in/$out build-statement
// variables.
func substitutePlaceholders(recipe string) string {
	r := strings.NewReplacer("{{ ins }}", "$in", "{{ outs }}", "$out")
	return r.Replace(escapeDollar(recipe))
}

func escapeDollar(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}

func escapePath(s string) string {
	r := strings.NewReplacer("$", "$$", ":", "$:", " ", "$ ")
	return r.Replace(s)
}

func writeEdge(b *strings.Builder, e *ir.BuildEdge) {
	rule := "phony"
	if e.Action != "" {
		rule = ruleName(e.Action)
	}

	outs := joinEscaped(e.Outputs)
	b.WriteString("build " + outs + ": " + rule)

	if len(e.ExplicitInputs) > 0 {
		b.WriteString(" " + joinEscaped(e.ExplicitInputs))
	}
	if len(e.ImplicitInputs) > 0 {
		b.WriteString(" | " + joinEscaped(e.ImplicitInputs))
	}

	orderOnly := e.OrderOnlyInputs
	if e.Always {
		// Ninja has no native "always rebuild" edge; the idiom is an
		// order-only dependency on the always-dirty phony sentinel.
		orderOnly = append(append([]string{}, orderOnly...), alwaysSentinel)
	}
	if len(orderOnly) > 0 {
		b.WriteString(" || " + joinEscaped(orderOnly))
	}
	b.WriteString("\n")

	vars := make([]string, 0, len(e.PerEdgeVars))
	for k := range e.PerEdgeVars {
		vars = append(vars, k)
	}
	sort.Strings(vars)
	for _, k := range vars {
		fmt.Fprintf(b, "  %s = %s\n", k, escapeDollar(e.PerEdgeVars[k]))
	}
	b.WriteString("\n")
}

func joinEscaped(items []string) string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = escapePath(s)
	}
	return strings.Join(out, " ")
}

// alwaysSentinel is a perpetually-dirty phony target every `always: true`
// edge depends on order-only, forcing Ninja to re-run it on every build.
const alwaysSentinel = "__netsuke_always__"

func needsAlwaysSentinel(edges []*ir.BuildEdge) bool {
	for _, e := range edges {
		if e.Always {
			return true
		}
	}
	return false
}

package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/leynos/netsuke/internal/ast"
	"github.com/leynos/netsuke/internal/diag"
)

// Compile performs stage S5: it turns a fully-rendered ast.Manifest into a
// validated BuildGraph — rule resolution, action deduplication, dependency
// arc classification, and cycle/uniqueness checking (spec §4.5).
func Compile(m *ast.Manifest) (*BuildGraph, error) {
	rules, err := buildRuleTable(m.Rules)
	if err != nil {
		return nil, err
	}

	g := &BuildGraph{
		Actions: map[ActionId]*Action{},
	}

	entries := make([]ast.Target, 0, len(m.Actions)+len(m.Targets))
	entries = append(entries, m.Actions...)
	entries = append(entries, m.Targets...)

	for _, t := range entries {
		edge, err := buildEdge(t, rules, g.Actions)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, edge)
	}

	nonPhonyOutputs := map[string]int{}
	outputIndex := map[string]int{}
	for i, e := range g.Edges {
		for _, name := range e.Outputs {
			if !e.Phony {
				if j, exists := nonPhonyOutputs[name]; exists {
					return nil, diag.New(diag.IrGen, "DuplicateOutput",
						fmt.Sprintf("output %q is produced by more than one non-phony edge (edges %d and %d)", name, j, i),
						e.Span)
				}
				nonPhonyOutputs[name] = i
			}
			if _, exists := outputIndex[name]; !exists {
				outputIndex[name] = i
			}
		}
	}

	if err := detectCycles(g.Edges, outputIndex); err != nil {
		return nil, err
	}

	g.DefaultTargetIndex = map[string]int{}
	for _, name := range m.Defaults {
		idx, ok := outputIndex[name]
		if !ok {
			return nil, diag.New(diag.IrGen, "UnknownDefault",
				fmt.Sprintf("default target %q does not match any declared output", name))
		}
		g.DefaultTargetIndex[name] = idx
	}
	g.Defaults = m.Defaults

	sort.SliceStable(g.Edges, func(i, j int) bool {
		return g.Edges[i].PrimaryOutput() < g.Edges[j].PrimaryOutput()
	})
	// DefaultTargetIndex and dependency arcs referred to pre-sort indices;
	// rebuild the output index against the final, sorted edge order so both
	// remain consistent for consumers (e.g. the Ninja synthesizer).
	outputIndex = map[string]int{}
	for i, e := range g.Edges {
		for _, name := range e.Outputs {
			if _, exists := outputIndex[name]; !exists {
				outputIndex[name] = i
			}
		}
	}
	for name := range g.DefaultTargetIndex {
		g.DefaultTargetIndex[name] = outputIndex[name]
	}

	return g, nil
}

func buildRuleTable(rules []ast.Rule) (map[string]*ast.Rule, error) {
	table := make(map[string]*ast.Rule, len(rules))
	for i := range rules {
		r := &rules[i]
		if _, exists := table[r.Name]; exists {
			return nil, diag.New(diag.IrGen, "DuplicateRule",
				fmt.Sprintf("rule %q is declared more than once", r.Name), r.Span)
		}
		table[r.Name] = r
	}
	return table, nil
}

func buildEdge(t ast.Target, rules map[string]*ast.Rule, actions map[ActionId]*Action) (*BuildEdge, error) {
	edge := &BuildEdge{
		Outputs:         t.Names,
		ExplicitInputs:  t.Sources,
		ImplicitInputs:  t.Deps,
		OrderOnlyInputs: t.OrderOnlyDeps,
		PerEdgeVars:     t.RenderedVars,
		Phony:           t.Phony,
		Always:          t.Always,
		Span:            t.Span,
	}

	switch t.Recipe.Kind {
	case ast.RecipeCommand, ast.RecipeScript:
		id, err := synthesizeAction(t.Recipe, "", "", actions)
		if err != nil {
			return nil, err
		}
		edge.Action = id
		return edge, nil
	case ast.RecipeRuleRef:
		rule, ok := rules[t.Recipe.RuleRef]
		if !ok {
			return nil, diag.New(diag.IrGen, "RuleNotFound",
				fmt.Sprintf("rule %q is not declared", t.Recipe.RuleRef), t.Recipe.Span)
		}
		desc := ""
		if rule.HasDescription {
			desc = rule.Description
		}
		id, err := synthesizeAction(rule.Recipe, desc, rule.Deps, actions)
		if err != nil {
			return nil, err
		}
		edge.Action = id
		return edge, nil
	default:
		return nil, diag.New(diag.Internal, "UnknownRecipeKind",
			fmt.Sprintf("unrecognised recipe kind %v", t.Recipe.Kind), t.Recipe.Span)
	}
}

func synthesizeAction(r ast.Recipe, description, depsFormat string, actions map[ActionId]*Action) (ActionId, error) {
	if r.Rendered == nil {
		return "", diag.New(diag.Internal, "UnrenderedRecipe", "recipe was not rendered before IR compilation", r.Span)
	}
	canonical, err := Canonicalize(r.Rendered)
	if err != nil {
		return "", diag.Wrap(diag.IrGen, "CommandNotParseable", err, r.Span)
	}

	isScript := r.Kind == ast.RecipeScript
	key := strings.Join([]string{canonical, description, depsFormat, strconv.FormatBool(isScript)}, "\x00")
	sum := sha256.Sum256([]byte(key))
	id := ActionId(hex.EncodeToString(sum[:]))

	if _, exists := actions[id]; !exists {
		actions[id] = &Action{
			ID:          id,
			Recipe:      canonical,
			IsScript:    isScript,
			Description: description,
			DepsFormat:  DepsFormat(depsFormat),
			Impure:      r.Rendered.Impure,
		}
	}
	return id, nil
}

// detectCycles walks the dependency graph implied by edges' inputs matching
// other edges' outputs, reporting the first cycle found in a deterministic
// order: edges are visited smallest-primary-output-first, and so is each
// edge's own dependency list (spec §4.5: "CircularDependency" with a
// reproducible path).
func detectCycles(edges []*BuildEdge, outputIndex map[string]int) error {
	deps := make([][]int, len(edges))
	for i, e := range edges {
		seen := map[int]bool{}
		for _, name := range allInputs(e) {
			j, ok := outputIndex[name]
			if !ok || j == i || seen[j] {
				continue
			}
			seen[j] = true
			deps[i] = append(deps[i], j)
		}
		sort.Slice(deps[i], func(a, b int) bool {
			return edges[deps[i][a]].PrimaryOutput() < edges[deps[i][b]].PrimaryOutput()
		})
	}

	order := make([]int, len(edges))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return edges[order[a]].PrimaryOutput() < edges[order[b]].PrimaryOutput()
	})

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(edges))
	var stack []int

	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		stack = append(stack, i)
		for _, j := range deps[i] {
			switch color[j] {
			case white:
				if err := visit(j); err != nil {
					return err
				}
			case gray:
				cyclePath := cycleFrom(stack, j, edges)
				return diag.New(diag.IrGen, "CircularDependency",
					fmt.Sprintf("circular dependency: %s", strings.Join(cyclePath, " -> ")),
					edges[i].Span)
			}
		}
		stack = stack[:len(stack)-1]
		color[i] = black
		return nil
	}

	for _, i := range order {
		if color[i] == white {
			if err := visit(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleFrom(stack []int, start int, edges []*BuildEdge) []string {
	pos := 0
	for k, v := range stack {
		if v == start {
			pos = k
			break
		}
	}
	path := make([]string, 0, len(stack)-pos+1)
	for _, idx := range stack[pos:] {
		path = append(path, edges[idx].PrimaryOutput())
	}
	path = append(path, edges[start].PrimaryOutput())
	return path
}

func allInputs(e *BuildEdge) []string {
	all := make([]string, 0, len(e.ExplicitInputs)+len(e.ImplicitInputs)+len(e.OrderOnlyInputs))
	all = append(all, e.ExplicitInputs...)
	all = append(all, e.ImplicitInputs...)
	all = append(all, e.OrderOnlyInputs...)
	return all
}

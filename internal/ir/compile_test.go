package ir

import (
	"testing"

	"github.com/leynos/netsuke/internal/ast"
	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/tmpl"
)

func mustRender(t *testing.T, src string) *tmpl.Rendered {
	t.Helper()
	return render(t, src)
}

func commandTarget(t *testing.T, name, command string, sources, deps []string) ast.Target {
	t.Helper()
	recipe := ast.Recipe{Kind: ast.RecipeCommand, Command: command, Rendered: mustRender(t, command)}
	return ast.Target{Names: []string{name}, Recipe: recipe, Sources: sources, Deps: deps}
}

func mustCompile(t *testing.T, m *ast.Manifest) *BuildGraph {
	t.Helper()
	g, err := Compile(m)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return g
}

func TestCompile_SimpleGraph(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "out.o", "gcc -c {{ ins }} -o {{ outs }}", []string{"out.c"}, nil),
		},
	}
	g := mustCompile(t, m)
	if len(g.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(g.Edges))
	}
	if len(g.Actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(g.Actions))
	}
}

func TestCompile_DeduplicatesIdenticalActions(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "a.o", "gcc -c {{ ins }} -o {{ outs }}", []string{"a.c"}, nil),
			commandTarget(t, "b.o", "gcc -c {{ ins }} -o {{ outs }}", []string{"b.c"}, nil),
		},
	}
	g := mustCompile(t, m)
	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(g.Edges))
	}
	if len(g.Actions) != 1 {
		t.Fatalf("expected the identical recipes to dedup to 1 action, got %d", len(g.Actions))
	}
}

func TestCompile_DistinctRecipesDoNotDedup(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "a.o", "gcc -c {{ ins }} -o {{ outs }}", []string{"a.c"}, nil),
			commandTarget(t, "b.o", "clang -c {{ ins }} -o {{ outs }}", []string{"b.c"}, nil),
		},
	}
	g := mustCompile(t, m)
	if len(g.Actions) != 2 {
		t.Fatalf("expected 2 distinct actions, got %d", len(g.Actions))
	}
}

func TestCompile_DuplicateOutputRejected(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "out.o", "gcc -c {{ ins }} -o {{ outs }}", []string{"a.c"}, nil),
			commandTarget(t, "out.o", "gcc -c {{ ins }} -o {{ outs }}", []string{"b.c"}, nil),
		},
	}
	_, err := Compile(m)
	d, ok := diag.As(err)
	if !ok {
		t.Fatalf("expected a *diag.Diagnostic, got %v (%T)", err, err)
	}
	if d.Code != "DuplicateOutput" {
		t.Fatalf("got code %q", d.Code)
	}
}

func TestCompile_UnknownRuleRejected(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			{Names: []string{"x"}, Recipe: ast.Recipe{Kind: ast.RecipeRuleRef, RuleRef: "missing"}},
		},
	}
	_, err := Compile(m)
	d, ok := diag.As(err)
	if !ok || d.Code != "RuleNotFound" {
		t.Fatalf("got %v", err)
	}
}

func TestCompile_DuplicateRuleRejected(t *testing.T) {
	recipe := ast.Recipe{Kind: ast.RecipeCommand, Command: "true", Rendered: mustRender(t, "true")}
	m := &ast.Manifest{
		Rules: []ast.Rule{
			{Name: "dup", Recipe: recipe},
			{Name: "dup", Recipe: recipe},
		},
	}
	_, err := Compile(m)
	d, ok := diag.As(err)
	if !ok || d.Code != "DuplicateRule" {
		t.Fatalf("got %v", err)
	}
}

func TestCompile_CircularDependencyDetected(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "a", "gcc -c {{ ins }} -o {{ outs }}", nil, []string{"b"}),
			commandTarget(t, "b", "gcc -c {{ ins }} -o {{ outs }}", nil, []string{"a"}),
		},
	}
	_, err := Compile(m)
	d, ok := diag.As(err)
	if !ok || d.Code != "CircularDependency" {
		t.Fatalf("got %v", err)
	}
}

func TestCompile_UnknownDefaultRejected(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "a", "echo hi", nil, nil),
		},
		Defaults: []string{"missing"},
	}
	_, err := Compile(m)
	d, ok := diag.As(err)
	if !ok || d.Code != "UnknownDefault" {
		t.Fatalf("got %v", err)
	}
}

func TestCompile_RuleRefSharesAction(t *testing.T) {
	recipe := ast.Recipe{Kind: ast.RecipeCommand, Command: "gcc -c {{ ins }} -o {{ outs }}", Rendered: mustRender(t, "gcc -c {{ ins }} -o {{ outs }}")}
	m := &ast.Manifest{
		Rules: []ast.Rule{{Name: "cc", Recipe: recipe}},
		Targets: []ast.Target{
			{Names: []string{"a.o"}, Sources: []string{"a.c"}, Recipe: ast.Recipe{Kind: ast.RecipeRuleRef, RuleRef: "cc"}},
			{Names: []string{"b.o"}, Sources: []string{"b.c"}, Recipe: ast.Recipe{Kind: ast.RecipeRuleRef, RuleRef: "cc"}},
		},
	}
	g := mustCompile(t, m)
	if len(g.Actions) != 1 {
		t.Fatalf("expected the shared rule to produce 1 action, got %d", len(g.Actions))
	}
}

func TestCompile_EdgesSortedByPrimaryOutput(t *testing.T) {
	m := &ast.Manifest{
		Targets: []ast.Target{
			commandTarget(t, "zeta", "echo z", nil, nil),
			commandTarget(t, "alpha", "echo a", nil, nil),
		},
	}
	g := mustCompile(t, m)
	if g.Edges[0].PrimaryOutput() != "alpha" || g.Edges[1].PrimaryOutput() != "zeta" {
		t.Fatalf("edges not sorted by primary output: %v", []string{g.Edges[0].PrimaryOutput(), g.Edges[1].PrimaryOutput()})
	}
}

package ast

import (
	"testing"

	"github.com/leynos/netsuke/internal/tmpl"
)

func TestRender_CommandInterpolatesGlobalsAndVars(t *testing.T) {
	env := tmpl.NewEnv()
	m := &Manifest{
		Vars: map[string]tmpl.Value{"cc": "gcc"},
		Targets: []Target{
			{
				Names:    []string{"{{ cc }}.o"},
				Recipe:   Recipe{Kind: RecipeCommand, Command: "{{ cc }} -c {{ name }}"},
				Vars:     map[string]*VarValue{"name": {Raw: "thing.c", IsRaw: true}},
				VarOrder: []string{"name"},
			},
		},
	}
	if err := Render(m, env); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if m.Targets[0].Names[0] != "gcc.o" {
		t.Fatalf("names[0] = %q", m.Targets[0].Names[0])
	}
	if got := m.Targets[0].Recipe.Rendered.Flatten(); got != "gcc -c thing.c" {
		t.Fatalf("command = %q", got)
	}
}

func TestRender_IterationScopeVisibleToRecipe(t *testing.T) {
	env := tmpl.NewEnv()
	m := &Manifest{
		Vars: map[string]tmpl.Value{},
		Targets: []Target{
			{
				Names:     []string{"out"},
				Recipe:    Recipe{Kind: RecipeCommand, Command: "echo {{ item }}"},
				iteration: map[string]tmpl.Value{"item": "fromforeach", "index": int64(0)},
			},
		},
	}
	if err := Render(m, env); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := m.Targets[0].Recipe.Rendered.Flatten(); got != "echo fromforeach" {
		t.Fatalf("command = %q", got)
	}
}

func TestRender_RuleRecipeRendersAgainstGlobalsOnly(t *testing.T) {
	env := tmpl.NewEnv()
	m := &Manifest{
		Vars: map[string]tmpl.Value{"cc": "gcc"},
		Rules: []Rule{
			{Name: "compile", Recipe: Recipe{Kind: RecipeCommand, Command: "{{ cc }} -c {{ ins }}"}},
		},
	}
	if err := Render(m, env); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := m.Rules[0].Recipe.Rendered.Flatten(); got != "gcc -c {{ ins }}" {
		t.Fatalf("command = %q", got)
	}
}

func TestRender_VarsRenderInDeclarationOrder(t *testing.T) {
	env := tmpl.NewEnv()
	m := &Manifest{
		Vars: map[string]tmpl.Value{},
		Targets: []Target{
			{
				Names: []string{"out"},
				Recipe: Recipe{
					Kind:    RecipeCommand,
					Command: "{{ a }}/{{ b }}",
				},
				Vars: map[string]*VarValue{
					"b": {Raw: "{{ a }}-x", IsRaw: true},
					"a": {Raw: "base", IsRaw: true},
				},
				VarOrder: []string{"b", "a"},
			},
		},
	}
	// b is declared before a and refers to it, so when b renders a is not
	// yet bound and Render must fail: a var only sees entries declared
	// earlier (VarOrder), not insertion order into the map literal above.
	if err := Render(m, env); err == nil {
		t.Fatalf("expected RenderVar to fail because a is not yet bound when b renders")
	}

	m2 := &Manifest{
		Vars: map[string]tmpl.Value{},
		Targets: []Target{
			{
				Names: []string{"out"},
				Recipe: Recipe{
					Kind:    RecipeCommand,
					Command: "{{ a }}/{{ b }}",
				},
				Vars: map[string]*VarValue{
					"a": {Raw: "base", IsRaw: true},
					"b": {Raw: "{{ a }}-x", IsRaw: true},
				},
				VarOrder: []string{"a", "b"},
			},
		},
	}
	if err := Render(m2, env); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := m2.Targets[0].Recipe.Rendered.Flatten(); got != "base/base-x" {
		t.Fatalf("command = %q", got)
	}
}

func TestRender_MacrosRegisteredBeforeRendering(t *testing.T) {
	env := tmpl.NewEnv()
	m := &Manifest{
		Vars:   map[string]tmpl.Value{},
		Macros: []MacroDef{{Signature: "shout(x)", Body: "x"}},
		Targets: []Target{
			{Names: []string{"out"}, Recipe: Recipe{Kind: RecipeCommand, Command: "echo {{ shout(\"hi\") }}"}},
		},
	}
	if err := Render(m, env); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := m.Targets[0].Recipe.Rendered.Flatten(); got != "echo hi" {
		t.Fatalf("command = %q", got)
	}
}

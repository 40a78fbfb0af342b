package ast

import (
	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/tmpl"
)

// Render performs stage S4.4.2: final per-string template rendering of
// every recipe field, walking the already-typed AST rather than the
// generic Document. It registers the manifest's macros on env first (spec
// §9: "Macros are registered at environment construction and are visible
// from any rendering site").
//
// Rule recipes render against globals only: a rule may be shared by many
// targets (spec §4.5.c dedup), so it carries no target-local scope of its
// own — only the inline Command/Script on a target gets target-local and
// iteration bindings (an Open Question spec.md leaves implicit; recorded
// in DESIGN.md).
func Render(m *Manifest, env *tmpl.Env) error {
	for _, macro := range m.Macros {
		if err := env.RegisterMacro(macro.Signature, macro.Body); err != nil {
			return diag.PreserveOrWrap(diag.Template, "MacroRegister", err, macro.Span)
		}
	}

	globalScope := tmpl.NewGlobalScope(m.Vars)

	for i := range m.Rules {
		if err := renderRuleRecipe(&m.Rules[i], globalScope, env); err != nil {
			return err
		}
	}
	for i := range m.Actions {
		if err := renderTarget(&m.Actions[i], m.Vars, env); err != nil {
			return err
		}
	}
	for i := range m.Targets {
		if err := renderTarget(&m.Targets[i], m.Vars, env); err != nil {
			return err
		}
	}
	return nil
}

func renderRuleRecipe(r *Rule, scope *tmpl.Scope, env *tmpl.Env) error {
	if r.HasDescription {
		rendered, err := tmpl.Render(r.Description, scope, env)
		if err != nil {
			return diag.PreserveOrWrap(diag.Template, "RenderDescription", err, r.Span)
		}
		r.Description = rendered.Flatten()
	}
	return renderRecipeFields(&r.Recipe, scope, env)
}

func renderRecipeFields(r *Recipe, scope *tmpl.Scope, env *tmpl.Env) error {
	switch r.Kind {
	case RecipeCommand:
		rendered, err := tmpl.Render(r.Command, scope, env)
		if err != nil {
			return diag.PreserveOrWrap(diag.Template, "RenderCommand", err, r.Span)
		}
		r.Rendered = &rendered
	case RecipeScript:
		rendered, err := tmpl.Render(r.Script, scope, env)
		if err != nil {
			return diag.PreserveOrWrap(diag.Template, "RenderScript", err, r.Span)
		}
		r.Rendered = &rendered
	}
	return nil
}

func renderTarget(t *Target, globals map[string]tmpl.Value, env *tmpl.Env) error {
	varsScope := tmpl.NewGlobalScope(globals)
	varValues := map[string]tmpl.Value{}
	for _, name := range t.VarOrder {
		vv := t.Vars[name]
		if vv.IsRaw {
			rendered, err := tmpl.Render(vv.Raw, varsScope, env)
			if err != nil {
				return diag.PreserveOrWrap(diag.Template, "RenderVar", err, vv.Span)
			}
			varValues[name] = rendered.Flatten()
		} else {
			varValues[name] = vv.Literal
		}
		varsScope = tmpl.NewGlobalScope(globals).WithTarget(varValues)
	}

	scope := tmpl.NewGlobalScope(globals).WithTarget(varValues)
	if t.iteration != nil {
		scope = scope.WithIteration(t.iteration)
	}

	renderAll := func(in []string, spans []diag.Span, field string) ([]string, error) {
		out := make([]string, len(in))
		for i, s := range in {
			rendered, err := tmpl.Render(s, scope, env)
			if err != nil {
				sp := diag.Span{}
				if i < len(spans) {
					sp = spans[i]
				}
				return nil, diag.PreserveOrWrap(diag.Template, "Render"+field, err, sp)
			}
			out[i] = rendered.Flatten()
		}
		return out, nil
	}

	var err error
	if t.Names, err = renderAll(t.Names, t.NameSpans, "Name"); err != nil {
		return err
	}
	if t.Sources, err = renderAll(t.Sources, nil, "Source"); err != nil {
		return err
	}
	if t.Deps, err = renderAll(t.Deps, nil, "Dep"); err != nil {
		return err
	}
	if t.OrderOnlyDeps, err = renderAll(t.OrderOnlyDeps, nil, "OrderOnlyDep"); err != nil {
		return err
	}

	// Render vars' final string forms into plain strings for IR per-edge
	// var emission, now that every value has been computed.
	t.RenderedVars = map[string]string{}
	for name, v := range varValues {
		t.RenderedVars[name] = tmpl.Stringify(v)
	}

	return renderRecipeFields(&t.Recipe, scope, env)
}

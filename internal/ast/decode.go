package ast

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/leynos/netsuke/internal/astconv"
	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/expand"
	"github.com/leynos/netsuke/internal/tmpl"
	"github.com/leynos/netsuke/internal/yamldoc"
)

// topLevelKeys is the closed schema for the manifest root (spec §6).
var topLevelKeys = map[string]bool{
	"netsuke_version": true, "vars": true, "macros": true,
	"rules": true, "actions": true, "targets": true, "defaults": true,
}

var ruleKeys = map[string]bool{
	"name": true, "command": true, "script": true, "rule": true,
	"description": true, "deps": true,
}

var targetKeys = map[string]bool{
	"name": true, "names": true, "command": true, "script": true, "rule": true,
	"sources": true, "deps": true, "order_only_deps": true, "vars": true,
	"phony": true, "always": true,
}

var macroKeys = map[string]bool{"signature": true, "body": true}

// supportedVersionMajor is the major line of netsuke_version this compiler
// understands (spec §3: "the manifest's declared version must be understood
// by the compiler (exact-match policy on the major line)").
const supportedVersionMajor = 1

// Decode converts an expanded Document (post-S3) into a typed Manifest,
// enforcing the closed schema: an unknown key under any mapping that
// defines one is a Schema/UnknownField error (spec §4.4.1). globals is the
// manifest's top-level `vars:` mapping, already resolved by the caller
// (via DecodeGlobalVars) so that S3's foreach/when evaluation and S4's
// deserialization see an identical set of bindings.
func Decode(exp *expand.Result, globals map[string]tmpl.Value) (*Manifest, error) {
	root := exp.Root
	if root == nil || root.Kind != yamldoc.Mapping {
		return nil, diag.New(diag.Schema, "InvalidRoot", "manifest must be a mapping")
	}
	if err := checkUnknown(root, topLevelKeys, "root"); err != nil {
		return nil, err
	}

	m := &Manifest{Vars: globals}

	verNode := root.Get("netsuke_version")
	if verNode == nil {
		return nil, diag.New(diag.Schema, "MissingField", "netsuke_version is required", root.Span)
	}
	verStr, err := astconv.String(verNode)
	if err != nil {
		return nil, err
	}
	ver, err := semver.NewVersion(verStr)
	if err != nil {
		return nil, diag.Wrap(diag.Schema, "InvalidVersion", err, verNode.Span)
	}
	if ver.Major() != supportedVersionMajor {
		return nil, diag.New(diag.Schema, "UnsupportedVersion",
			fmt.Sprintf("netsuke_version %s is not understood by this compiler (supports %d.x.x)",
				ver.String(), supportedVersionMajor),
			verNode.Span)
	}
	m.Version = ver

	if macrosNode := root.Get("macros"); macrosNode != nil {
		macros, err := decodeMacros(macrosNode)
		if err != nil {
			return nil, err
		}
		m.Macros = macros
	}

	if rulesNode := root.Get("rules"); rulesNode != nil {
		rules, err := decodeRules(rulesNode)
		if err != nil {
			return nil, err
		}
		m.Rules = rules
	}

	if actionsNode := root.Get("actions"); actionsNode != nil {
		targets, err := decodeTargets(actionsNode, exp.Iteration, true)
		if err != nil {
			return nil, err
		}
		m.Actions = targets
	}

	targetsNode := root.Get("targets")
	if targetsNode == nil {
		return nil, diag.New(diag.Schema, "MissingField", "targets is required", root.Span)
	}
	targets, err := decodeTargets(targetsNode, exp.Iteration, false)
	if err != nil {
		return nil, err
	}
	m.Targets = targets

	if defaultsNode := root.Get("defaults"); defaultsNode != nil {
		defaults, _, err := astconv.StringOrList(defaultsNode)
		if err != nil {
			return nil, err
		}
		m.Defaults = defaults
	}

	return m, nil
}

// DecodeGlobalVars renders the manifest's top-level `vars:` mapping in
// declaration order, each entry's scope including every var defined before
// it (spec §3 Manifest.vars: Map<String, Value>; spec §4.4.2 lists "values
// in vars" among the string-typed fields that get interpolated). Callers
// run this before S3 (expand.Expand needs the same globals for foreach/when
// scope) and pass the result into Decode unchanged.
func DecodeGlobalVars(n *yamldoc.Node, env *tmpl.Env) (map[string]tmpl.Value, error) {
	out := map[string]tmpl.Value{}
	if n == nil {
		return out, nil
	}
	if n.Kind != yamldoc.Mapping {
		return nil, diag.New(diag.Schema, "WrongType", "vars must be a mapping", n.Span)
	}
	for _, e := range n.Entries {
		if e.Key.Kind != yamldoc.Scalar {
			continue
		}
		if e.Value.Kind == yamldoc.Scalar && e.Value.Tag == "!!str" {
			scope := tmpl.NewGlobalScope(out)
			rendered, err := tmpl.Render(e.Value.Scalar, scope, env)
			if err != nil {
				return nil, diag.PreserveOrWrap(diag.Template, "RenderVar", err, e.Value.Span)
			}
			out[e.Key.Scalar] = rendered.Flatten()
		} else {
			out[e.Key.Scalar] = astconv.ToValue(e.Value)
		}
	}
	return out, nil
}

func checkUnknown(n *yamldoc.Node, allowed map[string]bool, where string) error {
	for _, e := range n.Entries {
		if e.Key.Kind != yamldoc.Scalar {
			continue
		}
		if !allowed[e.Key.Scalar] {
			return diag.New(diag.Schema, "UnknownField",
				fmt.Sprintf("unknown field %q in %s", e.Key.Scalar, where), e.Key.Span)
		}
	}
	return nil
}

func decodeMacros(n *yamldoc.Node) ([]MacroDef, error) {
	if n.Kind != yamldoc.Sequence {
		return nil, diag.New(diag.Schema, "WrongType", "macros must be a list", n.Span)
	}
	out := make([]MacroDef, 0, len(n.Items))
	for _, item := range n.Items {
		if item.Kind != yamldoc.Mapping {
			return nil, diag.New(diag.Schema, "WrongType", "macro entry must be a mapping", item.Span)
		}
		if err := checkUnknown(item, macroKeys, "macro"); err != nil {
			return nil, err
		}
		sig, err := requireString(item, "signature")
		if err != nil {
			return nil, err
		}
		body, err := requireString(item, "body")
		if err != nil {
			return nil, err
		}
		out = append(out, MacroDef{Signature: sig, Body: body, Span: item.Span})
	}
	return out, nil
}

func decodeRules(n *yamldoc.Node) ([]Rule, error) {
	if n.Kind != yamldoc.Sequence {
		return nil, diag.New(diag.Schema, "WrongType", "rules must be a list", n.Span)
	}
	out := make([]Rule, 0, len(n.Items))
	for _, item := range n.Items {
		if item.Kind != yamldoc.Mapping {
			return nil, diag.New(diag.Schema, "WrongType", "rule entry must be a mapping", item.Span)
		}
		if err := checkUnknown(item, ruleKeys, "rule"); err != nil {
			return nil, err
		}
		name, err := requireString(item, "name")
		if err != nil {
			return nil, err
		}
		recipe, err := decodeRecipe(item)
		if err != nil {
			return nil, err
		}
		r := Rule{Name: name, Recipe: recipe, Span: item.Span}
		if descNode := item.Get("description"); descNode != nil {
			desc, err := astconv.String(descNode)
			if err != nil {
				return nil, err
			}
			r.Description = desc
			r.HasDescription = true
		}
		if depsNode := item.Get("deps"); depsNode != nil {
			deps, err := astconv.String(depsNode)
			if err != nil {
				return nil, err
			}
			r.Deps = deps
		}
		out = append(out, r)
	}
	return out, nil
}

// decodeTargets decodes a list of target (or action) entries. defaultPhony
// is true for the `actions` list, whose entries default to phony:true per
// spec §6. iteration carries S3's captured foreach item/index scope, keyed
// by the exact clone node pointer S3 produced.
func decodeTargets(n *yamldoc.Node, iteration map[*yamldoc.Node]expand.Iteration, defaultPhony bool) ([]Target, error) {
	if n.Kind != yamldoc.Sequence {
		return nil, diag.New(diag.Schema, "WrongType", "targets must be a list", n.Span)
	}
	out := make([]Target, 0, len(n.Items))
	for _, item := range n.Items {
		if item.Kind != yamldoc.Mapping {
			return nil, diag.New(diag.Schema, "WrongType", "target entry must be a mapping", item.Span)
		}
		if err := checkUnknown(item, targetKeys, "target"); err != nil {
			return nil, err
		}
		t, err := decodeTarget(item, defaultPhony)
		if err != nil {
			return nil, err
		}
		if it, ok := iteration[item]; ok {
			t.iteration = it
		}
		out = append(out, t)
	}
	return out, nil
}

func decodeTarget(item *yamldoc.Node, defaultPhony bool) (Target, error) {
	namesNode := item.Get("names")
	nameNode := item.Get("name")
	if namesNode != nil && nameNode != nil {
		return Target{}, diag.New(diag.Schema, "AmbiguousField",
			"a target may declare either 'name' or 'names', not both", item.Span)
	}
	selected := namesNode
	if selected == nil {
		selected = nameNode
	}
	if selected == nil {
		return Target{}, diag.New(diag.Schema, "MissingField", "name or names is required", item.Span)
	}
	names, spans, err := astconv.StringOrList(selected)
	if err != nil {
		return Target{}, err
	}
	if len(names) == 0 {
		return Target{}, diag.New(diag.Schema, "EmptyNames", "names must contain at least one entry", selected.Span)
	}

	recipe, err := decodeRecipe(item)
	if err != nil {
		return Target{}, err
	}

	t := Target{Names: names, NameSpans: spans, Recipe: recipe, Span: item.Span, Phony: defaultPhony}

	if sourcesNode := item.Get("sources"); sourcesNode != nil {
		sources, _, err := astconv.StringOrList(sourcesNode)
		if err != nil {
			return Target{}, err
		}
		t.Sources = sources
	}
	if depsNode := item.Get("deps"); depsNode != nil {
		deps, _, err := astconv.StringOrList(depsNode)
		if err != nil {
			return Target{}, err
		}
		t.Deps = deps
	}
	if oodNode := item.Get("order_only_deps"); oodNode != nil {
		ood, _, err := astconv.StringOrList(oodNode)
		if err != nil {
			return Target{}, err
		}
		t.OrderOnlyDeps = ood
	}
	if varsNode := item.Get("vars"); varsNode != nil {
		vars, order, err := decodeVars(varsNode)
		if err != nil {
			return Target{}, err
		}
		t.Vars = vars
		t.VarOrder = order
	}
	if phonyNode := item.Get("phony"); phonyNode != nil {
		b, err := requireBool(phonyNode, "phony")
		if err != nil {
			return Target{}, err
		}
		t.Phony = b
		t.PhonySet = true
	}
	if alwaysNode := item.Get("always"); alwaysNode != nil {
		b, err := requireBool(alwaysNode, "always")
		if err != nil {
			return Target{}, err
		}
		t.Always = b
	}

	return t, nil
}

// decodeVars decodes a target's `vars:` mapping, returning both the
// name->value map and the keys in YAML declaration order: renderTarget
// must render each entry's scope to include every vars entry already
// resolved earlier in declaration order (spec §5), and Go map iteration
// order is randomized per-run, so the order slice is the only reliable
// carrier of that sequence from here to render.go.
func decodeVars(n *yamldoc.Node) (map[string]*VarValue, []string, error) {
	if n.Kind != yamldoc.Mapping {
		return nil, nil, diag.New(diag.Schema, "WrongType", "vars must be a mapping", n.Span)
	}
	out := map[string]*VarValue{}
	order := make([]string, 0, len(n.Entries))
	for _, e := range n.Entries {
		if e.Key.Kind != yamldoc.Scalar {
			continue
		}
		if _, dup := out[e.Key.Scalar]; !dup {
			order = append(order, e.Key.Scalar)
		}
		if e.Value.Kind == yamldoc.Scalar && e.Value.Tag == "!!str" {
			out[e.Key.Scalar] = &VarValue{Raw: e.Value.Scalar, IsRaw: true, Span: e.Value.Span}
		} else {
			out[e.Key.Scalar] = &VarValue{Literal: astconv.ToValue(e.Value), Span: e.Value.Span}
		}
	}
	return out, order, nil
}

func requireString(n *yamldoc.Node, key string) (string, error) {
	v := n.Get(key)
	if v == nil {
		return "", diag.New(diag.Schema, "MissingField", fmt.Sprintf("%s is required", key), n.Span)
	}
	return astconv.String(v)
}

func requireBool(n *yamldoc.Node, field string) (bool, error) {
	if n.Kind != yamldoc.Scalar || n.Tag != "!!bool" {
		return false, diag.New(diag.Schema, "WrongType", fmt.Sprintf("%s must be a boolean", field), n.Span)
	}
	return n.Scalar == "true", nil
}

func decodeRecipe(n *yamldoc.Node) (Recipe, error) {
	cmdNode := n.Get("command")
	scriptNode := n.Get("script")
	ruleNode := n.Get("rule")
	count := 0
	for _, present := range []bool{cmdNode != nil, scriptNode != nil, ruleNode != nil} {
		if present {
			count++
		}
	}
	switch {
	case count == 0:
		return Recipe{}, diag.New(diag.Schema, "MissingRecipe",
			"exactly one of command, script, or rule is required", n.Span)
	case count > 1:
		return Recipe{}, diag.New(diag.IrGen, "AmbiguousRecipe",
			"only one of command, script, or rule may be present", n.Span)
	}
	switch {
	case cmdNode != nil:
		s, err := astconv.String(cmdNode)
		if err != nil {
			return Recipe{}, err
		}
		return Recipe{Kind: RecipeCommand, Command: s, Span: cmdNode.Span}, nil
	case scriptNode != nil:
		s, err := astconv.String(scriptNode)
		if err != nil {
			return Recipe{}, err
		}
		return Recipe{Kind: RecipeScript, Script: s, Span: scriptNode.Span}, nil
	default:
		s, err := astconv.String(ruleNode)
		if err != nil {
			return Recipe{}, err
		}
		return Recipe{Kind: RecipeRuleRef, RuleRef: s, Span: ruleNode.Span}, nil
	}
}

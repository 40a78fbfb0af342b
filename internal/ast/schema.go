// Package ast implements stage S4: typed deserialization of the expanded
// Document into the closed-schema Abstract Syntax Tree described by spec
// §3, followed by final per-string template rendering (spec §4.4).
package ast

import (
	"github.com/Masterminds/semver/v3"

	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/tmpl"
)

// RecipeKind tags which variant of the Recipe sum type is populated.
type RecipeKind int

const (
	RecipeNone RecipeKind = iota
	RecipeCommand
	RecipeScript
	RecipeRuleRef
)

// Recipe is the tagged variant from spec §3: exactly one of
// Command/Script/RuleRef is ever populated, enforced at decode time.
type Recipe struct {
	Kind    RecipeKind
	Command string // raw, unrendered template source
	Script  string
	RuleRef string
	Span    diag.Span

	// Rendered is populated by Render for Command/Script recipes: the
	// segmented form S5 canonicalization needs to tell literal text apart
	// from interpolation sites (spec §4.5.b).
	Rendered *tmpl.Rendered
}

// MacroDef is a user macro registered before rendering (spec §3).
type MacroDef struct {
	Signature string
	Body      string
	Span      diag.Span
}

// Rule is a named, reusable recipe (spec §3).
type Rule struct {
	Name        string
	Recipe      Recipe
	Description string // raw; empty+HasDescription=false if absent
	HasDescription bool
	Deps        string // DepsFormat: "gcc", "msvc", or "" (unspecified)
	Span        diag.Span
}

// Target is one build-graph producer entry (spec §3). All string-typed
// fields below are raw (unrendered) until Render runs.
type Target struct {
	Names         []string
	NameSpans     []diag.Span
	Recipe        Recipe
	Sources       []string
	Deps          []string
	OrderOnlyDeps []string
	Vars          map[string]*VarValue
	VarOrder      []string // declaration order of Vars' keys, for ordered rendering
	RenderedVars  map[string]string
	Phony         bool
	PhonySet      bool
	Always        bool
	Span          diag.Span

	// iteration, if non-nil, is the item/index scope this target was cloned
	// from a foreach entry with (spec §4.4.2).
	iteration map[string]tmpl.Value
}

// VarValue is one `vars:` entry before rendering: either a raw template
// string (rendered at S4.4.2) or a literal, already-typed Value (spec
// §4.4.2 only renders "values in vars" that are string-typed).
type VarValue struct {
	Raw     string
	IsRaw   bool
	Literal tmpl.Value
	Span    diag.Span
}

// Manifest is the root AST node (spec §3).
type Manifest struct {
	Version  *semver.Version
	Vars     map[string]tmpl.Value // globals, already resolved (see Render)
	Macros   []MacroDef
	Rules    []Rule
	Actions  []Target
	Targets  []Target
	Defaults []string
}

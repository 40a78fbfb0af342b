package tmpl

import (
	"fmt"
	"strings"

	"github.com/leynos/netsuke/internal/policy"
)

// Callable is a tagged variant of the "capability surface" spec §9
// describes: a named function/filter/test with a purity bit, modelled as a
// registry entry rather than a Go closure type switch. User macros are not
// Callables: they live in their own registry and are dispatched by
// callMacro.
type Callable struct {
	Name string
	Pure bool
	Fn   func(env *Env, args []Value) (Value, *Externality, error)
}

// MacroDef is a user macro registered from the manifest's `macros` list
// (spec §3: `MacroDef { signature, body }`). Signature is parsed into a
// name and parameter list once at registration time.
type MacroDef struct {
	Name   string
	Params []string
	Body   Expr
}

// Env owns the registry of filters, functions, tests, and macros visible
// to every rendering site (spec §4.7, §9 "Macro scoping").
type Env struct {
	filters   map[string]Callable
	functions map[string]Callable
	tests     map[string]Callable
	macros    map[string]*MacroDef

	// BaseDir anchors glob() and the filesystem-query functions.
	BaseDir string
	Network policy.Network
	Budgets policy.Budgets
	Cache   *policy.CacheDir
}

// NewEnv returns an Env pre-populated with the standard-library surface and
// spec-default policy/budgets (hosts override via the exported fields).
func NewEnv() *Env {
	e := &Env{
		filters:   map[string]Callable{},
		functions: map[string]Callable{},
		tests:     map[string]Callable{},
		macros:    map[string]*MacroDef{},
		BaseDir:   ".",
		Network:   policy.DefaultNetwork(),
		Budgets:   policy.DefaultBudgets(),
	}
	registerStdlib(e)
	return e
}

func (e *Env) RegisterFilter(c Callable)   { e.filters[c.Name] = c }
func (e *Env) RegisterFunction(c Callable) { e.functions[c.Name] = c }
func (e *Env) RegisterTest(c Callable)     { e.tests[c.Name] = c }

func (e *Env) filter(name string) (Callable, bool)   { c, ok := e.filters[name]; return c, ok }
func (e *Env) function(name string) (Callable, bool) { c, ok := e.functions[name]; return c, ok }
func (e *Env) macro(name string) (*MacroDef, bool)    { m, ok := e.macros[name]; return m, ok }

// RegisterMacro parses a `{signature, body}` pair from the manifest's
// `macros` list and compiles its body eagerly so later calls only pay
// evaluation cost.
func (e *Env) RegisterMacro(signature, body string) error {
	name, params, err := parseSignature(signature)
	if err != nil {
		return fmt.Errorf("macro signature %q: %w", signature, err)
	}
	bodyExpr, err := Parse(body)
	if err != nil {
		return fmt.Errorf("macro %q body: %w", name, err)
	}
	e.macros[name] = &MacroDef{Name: name, Params: params, Body: bodyExpr}
	return nil
}

// parseSignature parses "name(a, b, c)" or a bare "name" into its parts.
func parseSignature(sig string) (string, []string, error) {
	sig = strings.TrimSpace(sig)
	open := strings.IndexByte(sig, '(')
	if open == -1 {
		return sig, nil, nil
	}
	if !strings.HasSuffix(sig, ")") {
		return "", nil, fmt.Errorf("missing closing ')'")
	}
	name := strings.TrimSpace(sig[:open])
	inner := strings.TrimSpace(sig[open+1 : len(sig)-1])
	if inner == "" {
		return name, nil, nil
	}
	parts := strings.Split(inner, ",")
	params := make([]string, len(parts))
	for i, p := range parts {
		params[i] = strings.TrimSpace(p)
	}
	return name, params, nil
}

// callMacro invokes a macro body in a fresh scope that carries only the
// caller's globals plus the bound parameters — per spec §9, macros "do not
// capture iteration scopes unless explicitly passed arguments".
func callMacro(m *MacroDef, args []Value, scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	if len(args) != len(m.Params) {
		return nil, &evalError{msg: fmt.Sprintf("macro %q expects %d argument(s), got %d", m.Name, len(m.Params), len(args))}
	}
	bound := make(map[string]Value, len(m.Params))
	for i, p := range m.Params {
		bound[p] = args[i]
	}
	macroScope := NewGlobalScope(scope.globals).WithTarget(bound)
	return m.Body.eval(macroScope, env, ctx)
}

// EvalResult is the outcome of evaluating a standalone expression (as used
// by `foreach`/`when`): the value plus the purity taint and any recorded
// externalities.
type EvalResult struct {
	Value         Value
	Impure        bool
	Externalities []Externality
}

// Eval parses and evaluates src as a standalone expression under scope.
func Eval(src string, scope *Scope, env *Env) (EvalResult, error) {
	expr, err := Parse(src)
	if err != nil {
		return EvalResult{}, err
	}
	ctx := &evalCtx{}
	v, err := expr.eval(scope, env, ctx)
	if err != nil {
		return EvalResult{}, err
	}
	return EvalResult{Value: v, Impure: ctx.impure, Externalities: ctx.externalities}, nil
}

package tmpl

// Expr is a parsed expression node. Every node implements eval against a
// scope, an environment, and an accumulating evalCtx that records purity
// taint and impure-call externalities (spec §4.7: "the engine records the
// captured externality... so diagnostics and tests can reproduce
// invocations").
type Expr interface {
	eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error)
}

// evalCtx accumulates cross-cutting evaluation state threaded through a
// single expression tree walk.
type evalCtx struct {
	impure        bool
	externalities []Externality
}

// Externality records one observed effect of an impure callable invocation.
type Externality struct {
	Kind   string // "env", "fs", "fetch", "shell"
	Detail string // e.g. the env var name, the canonicalized path, the URL
}

func (c *evalCtx) markImpure(ext *Externality) {
	c.impure = true
	if ext != nil {
		c.externalities = append(c.externalities, *ext)
	}
}

type litExpr struct{ v Value }

func (e *litExpr) eval(*Scope, *Env, *evalCtx) (Value, error) { return e.v, nil }

// identExpr resolves a bare name. "ins" and "outs" are recognised before
// scope lookup: they are never ordinary variables, they are the recipe
// placeholders that must survive rendering and canonicalization verbatim
// (spec §3 invariants, §4.5.b).
type identExpr struct{ name string }

func (e *identExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	if e.name == "ins" || e.name == "outs" {
		return Placeholder(e.name), nil
	}
	if v, ok := scope.Lookup(e.name); ok {
		return v, nil
	}
	if m, ok := env.macro(e.name); ok {
		return callMacro(m, nil, scope, env, ctx)
	}
	return nil, &evalError{msg: "undefined variable: " + e.name}
}

type attrExpr struct {
	base Expr
	name string
}

func (e *attrExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	base, err := e.base.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	m, ok := base.(map[string]Value)
	if !ok {
		return nil, &evalError{msg: "cannot access attribute " + e.name + " of non-mapping value"}
	}
	return m[e.name], nil
}

type indexExpr struct {
	base, index Expr
}

func (e *indexExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	base, err := e.base.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	idx, err := e.index.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	switch b := base.(type) {
	case map[string]Value:
		key, err := AsString(idx)
		if err != nil {
			return nil, err
		}
		return b[key], nil
	case []Value:
		i, ok := idx.(int64)
		if !ok {
			return nil, &evalError{msg: "sequence index must be an integer"}
		}
		if i < 0 || int(i) >= len(b) {
			return nil, &evalError{msg: "sequence index out of range"}
		}
		return b[i], nil
	default:
		return nil, &evalError{msg: "cannot index a non-collection value"}
	}
}

type unaryExpr struct {
	op string // "-" or "not"
	x  Expr
}

func (e *unaryExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	v, err := e.x.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "not":
		return !Truthy(v), nil
	case "-":
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		default:
			return nil, &evalError{msg: "unary '-' requires a number"}
		}
	}
	return nil, &evalError{msg: "unknown unary operator " + e.op}
}

type binaryExpr struct {
	op   string
	l, r Expr
}

func (e *binaryExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	l, err := e.l.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "and":
		if !Truthy(l) {
			return false, nil
		}
		r, err := e.r.eval(scope, env, ctx)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	case "or":
		if Truthy(l) {
			return true, nil
		}
		r, err := e.r.eval(scope, env, ctx)
		if err != nil {
			return nil, err
		}
		return Truthy(r), nil
	}

	r, err := e.r.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	switch e.op {
	case "==":
		return Equal(l, r), nil
	case "!=":
		return !Equal(l, r), nil
	case "<":
		return Compare(l, r) < 0, nil
	case "<=":
		return Compare(l, r) <= 0, nil
	case ">":
		return Compare(l, r) > 0, nil
	case ">=":
		return Compare(l, r) >= 0, nil
	case "in":
		list, err := AsList(r)
		if err != nil {
			return nil, err
		}
		for _, item := range list {
			if Equal(l, item) {
				return true, nil
			}
		}
		return false, nil
	}
	return nil, &evalError{msg: "unknown binary operator " + e.op}
}

type callExpr struct {
	name string
	args []Expr
}

func (e *callExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	args, err := evalAll(e.args, scope, env, ctx)
	if err != nil {
		return nil, err
	}
	if m, ok := env.macro(e.name); ok {
		return callMacro(m, args, scope, env, ctx)
	}
	fn, ok := env.function(e.name)
	if !ok {
		return nil, &evalError{msg: "unknown function: " + e.name}
	}
	return invoke(fn, env, args, ctx)
}

type filterExpr struct {
	base Expr
	name string
	args []Expr
}

func (e *filterExpr) eval(scope *Scope, env *Env, ctx *evalCtx) (Value, error) {
	base, err := e.base.eval(scope, env, ctx)
	if err != nil {
		return nil, err
	}
	if e.name == "raw" {
		// `raw` is handled specially by the string renderer, not as an
		// ordinary filter: it never transforms the value, only how the
		// interpolation site is later canonicalized.
		return base, nil
	}
	args, err := evalAll(e.args, scope, env, ctx)
	if err != nil {
		return nil, err
	}
	f, ok := env.filter(e.name)
	if !ok {
		return nil, &evalError{msg: "unknown filter: " + e.name}
	}
	return invoke(f, env, append([]Value{base}, args...), ctx)
}

func evalAll(exprs []Expr, scope *Scope, env *Env, ctx *evalCtx) ([]Value, error) {
	out := make([]Value, 0, len(exprs))
	for _, e := range exprs {
		v, err := e.eval(scope, env, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func invoke(c Callable, env *Env, args []Value, ctx *evalCtx) (Value, error) {
	v, ext, err := c.Fn(env, args)
	if err != nil {
		return nil, err
	}
	if !c.Pure {
		ctx.markImpure(ext)
	}
	return v, nil
}

type evalError struct{ msg string }

func (e *evalError) Error() string { return e.msg }

// Placeholder marks a recipe-level "ins"/"outs" reference. It stringifies
// to the literal `{{ ins }}`/`{{ outs }}` text so that, outside of command
// canonicalization, it simply round-trips; command canonicalization (S5)
// recognises it specifically and leaves it untouched rather than
// shell-quoting it.
type Placeholder string

func (p Placeholder) String() string { return "{{ " + string(p) + " }}" }

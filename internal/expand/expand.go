// Package expand implements stage S3: walking the Document for target (and
// action) entries that carry a `foreach` and/or `when` key, multiplying or
// filtering them while the tree is still untyped (spec §4.3). No other
// structural template construct is permitted anywhere in the Document; a
// stray "{%" outside these two keys is rejected at S4 rendering time
// instead, per spec §4.3's own note that this is "caught in S4".
package expand

import (
	"fmt"

	"github.com/leynos/netsuke/internal/astconv"
	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/tmpl"
	"github.com/leynos/netsuke/internal/yamldoc"
)

// Iteration is the per-clone scope captured at expansion time: the bound
// `item`/`index` pair a foreach clone carries forward into S4 rendering
// (spec §4.4.2: "if expanded from foreach, the captured iteration scope").
type Iteration map[string]tmpl.Value

// Result is the expanded Document plus the iteration scope recorded for
// every cloned target node, keyed by node identity.
type Result struct {
	Root      *yamldoc.Node
	Iteration map[*yamldoc.Node]Iteration
}

// listKeys are the two top-level manifest keys whose entries may carry
// foreach/when (spec §6: targets, and actions "treated as a target").
var listKeys = []string{"targets", "actions"}

// Expand walks root's targets/actions lists, expanding each foreach/when
// entry in place. globals is the manifest-level scope (spec §3 vars,
// already converted to tmpl.Value by the caller).
func Expand(root *yamldoc.Node, globals map[string]tmpl.Value, env *tmpl.Env) (*Result, error) {
	res := &Result{Root: root, Iteration: map[*yamldoc.Node]Iteration{}}
	if root == nil || root.Kind != yamldoc.Mapping {
		return res, nil
	}
	for _, key := range listKeys {
		for i, e := range root.Entries {
			if e.Key.Kind != yamldoc.Scalar || e.Key.Scalar != key {
				continue
			}
			if e.Value.Kind != yamldoc.Sequence {
				continue
			}
			expanded, err := expandList(e.Value.Items, globals, env, res)
			if err != nil {
				return nil, err
			}
			root.Entries[i].Value = &yamldoc.Node{
				Kind: yamldoc.Sequence, Items: expanded, Span: e.Value.Span,
			}
		}
	}
	return res, nil
}

func expandList(items []*yamldoc.Node, globals map[string]tmpl.Value, env *tmpl.Env, res *Result) ([]*yamldoc.Node, error) {
	var out []*yamldoc.Node
	for _, item := range items {
		clones, err := expandEntry(item, globals, env, res)
		if err != nil {
			return nil, err
		}
		out = append(out, clones...)
	}
	return out, nil
}

// expandEntry expands a single target/action entry, returning zero or more
// clones. An entry with neither foreach nor when is returned unchanged, as
// a single-element slice.
func expandEntry(entry *yamldoc.Node, globals map[string]tmpl.Value, env *tmpl.Env, res *Result) ([]*yamldoc.Node, error) {
	if entry.Kind != yamldoc.Mapping {
		return []*yamldoc.Node{entry}, nil
	}
	foreachNode := entry.Get("foreach")
	whenNode := entry.Get("when")
	if foreachNode == nil && whenNode == nil {
		return []*yamldoc.Node{entry}, nil
	}

	localScope, err := targetLocalScope(entry, globals, env)
	if err != nil {
		return nil, err
	}

	base := stripKeys(entry, "foreach", "when")

	if foreachNode == nil {
		// A bare `when` with no foreach: evaluate once, no item/index bound.
		ok, err := evalWhenScope(whenNode, tmpl.NewGlobalScope(globals).WithTarget(localScope), env)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []*yamldoc.Node{base}, nil
	}

	if foreachNode.Kind != yamldoc.Scalar {
		return nil, diag.New(diag.Template, "ForeachNotIterable",
			"foreach expression must be a scalar expression string", foreachNode.Span)
	}
	evalResult, err := tmpl.Eval(foreachNode.Scalar, tmpl.NewGlobalScope(globals).WithTarget(localScope), env)
	if err != nil {
		return nil, diag.PreserveOrWrap(diag.Template, "ForeachEval", err, foreachNode.Span)
	}
	items, err := tmpl.AsList(evalResult.Value)
	if err != nil {
		return nil, diag.New(diag.Template, "ForeachNotIterable",
			fmt.Sprintf("foreach expression did not evaluate to an iterable: %v", err), foreachNode.Span)
	}

	var out []*yamldoc.Node
	targetScope := tmpl.NewGlobalScope(globals).WithTarget(localScope)
	for idx, item := range items {
		iterScope := targetScope.WithIteration(map[string]tmpl.Value{"item": item, "index": int64(idx)})
		if whenNode != nil {
			ok, err := evalWhenScope(whenNode, iterScope, env)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		clone := deepClone(base)
		res.Iteration[clone] = Iteration{"item": item, "index": int64(idx)}
		out = append(out, clone)
	}
	return out, nil
}

func evalWhenScope(whenNode *yamldoc.Node, scope *tmpl.Scope, env *tmpl.Env) (bool, error) {
	if whenNode.Kind != yamldoc.Scalar {
		return false, diag.New(diag.Template, "WhenNotBoolean",
			"when expression must be a scalar expression string", whenNode.Span)
	}
	res, err := tmpl.Eval(whenNode.Scalar, scope, env)
	if err != nil {
		return false, diag.PreserveOrWrap(diag.Template, "WhenEval", err, whenNode.Span)
	}
	b, ok := res.Value.(bool)
	if !ok {
		return false, diag.New(diag.Template, "WhenNotBoolean",
			"when expression did not evaluate to a boolean", whenNode.Span)
	}
	return b, nil
}

// targetLocalScope renders the entry's own `vars:` mapping (if any) against
// globals plus the entries declared before it, giving foreach/when
// expressions access to target-local
// bindings before any iteration scope exists (spec §4.3 step 1: "the
// current scope (manifest globals + target-local vars)").
func targetLocalScope(entry *yamldoc.Node, globals map[string]tmpl.Value, env *tmpl.Env) (map[string]tmpl.Value, error) {
	varsNode := entry.Get("vars")
	if varsNode == nil {
		return nil, nil
	}
	if varsNode.Kind != yamldoc.Mapping {
		return nil, diag.New(diag.Schema, "WrongType", "vars must be a mapping", varsNode.Span)
	}
	out := map[string]tmpl.Value{}
	scope := tmpl.NewGlobalScope(globals)
	for _, e := range varsNode.Entries {
		if e.Key.Kind != yamldoc.Scalar {
			continue
		}
		if e.Value.Kind == yamldoc.Scalar && e.Value.Tag == "!!str" {
			rendered, err := tmpl.Render(e.Value.Scalar, scope, env)
			if err != nil {
				return nil, diag.PreserveOrWrap(diag.Template, "RenderVar", err, e.Value.Span)
			}
			out[e.Key.Scalar] = rendered.Flatten()
		} else {
			out[e.Key.Scalar] = astconv.ToValue(e.Value)
		}
		scope = tmpl.NewGlobalScope(globals).WithTarget(out)
	}
	return out, nil
}

// stripKeys returns a shallow copy of a mapping node with the named keys
// removed.
func stripKeys(n *yamldoc.Node, keys ...string) *yamldoc.Node {
	drop := map[string]bool{}
	for _, k := range keys {
		drop[k] = true
	}
	out := &yamldoc.Node{Kind: yamldoc.Mapping, Tag: n.Tag, Span: n.Span}
	for _, e := range n.Entries {
		if e.Key.Kind == yamldoc.Scalar && drop[e.Key.Scalar] {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}

// deepClone copies a node tree so repeated foreach iterations never alias
// shared structure (spec §4.3 step 4: "Emit a cloned target entry").
func deepClone(n *yamldoc.Node) *yamldoc.Node {
	if n == nil {
		return nil
	}
	clone := &yamldoc.Node{Kind: n.Kind, Tag: n.Tag, Scalar: n.Scalar, Span: n.Span}
	for _, it := range n.Items {
		clone.Items = append(clone.Items, deepClone(it))
	}
	for _, e := range n.Entries {
		clone.Entries = append(clone.Entries, yamldoc.Entry{Key: deepClone(e.Key), Value: deepClone(e.Value)})
	}
	return clone
}

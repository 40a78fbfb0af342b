// Package compiler wires stages S1 through S6 into the single entry point
// the CLI and the `repl` debugger both call: an ingested manifest in,
// either a Ninja build file or a diagnostic out.
package compiler

import (
	"github.com/leynos/netsuke/internal/ast"
	"github.com/leynos/netsuke/internal/expand"
	"github.com/leynos/netsuke/internal/ingest"
	"github.com/leynos/netsuke/internal/ir"
	"github.com/leynos/netsuke/internal/ninja"
	"github.com/leynos/netsuke/internal/tmpl"
	"github.com/leynos/netsuke/internal/yamldoc"
)

// Result holds every stage's output that a caller might want to inspect
// (the `repl` and `targets` commands need the Manifest and BuildGraph,
// not just the final Ninja text).
type Result struct {
	Document *yamldoc.Node
	Manifest *ast.Manifest
	Graph    *ir.BuildGraph
	Ninja    string
}

// Compile runs the full S1-S6 pipeline over src, registering env's macros
// and filters before the first render. Pass tmpl.NewEnv() for a fresh
// environment, or a caller-configured one (e.g. the CLI's newEnv, which
// applies the budget flags and the fetch cache).
func Compile(src *ingest.Source, env *tmpl.Env) (*Result, error) {
	doc, err := yamldoc.Parse(src.Origin, src.Bytes)
	if err != nil {
		return nil, err
	}

	globals, err := ast.DecodeGlobalVars(doc.Get("vars"), env)
	if err != nil {
		return nil, err
	}

	exp, err := expand.Expand(doc, globals, env)
	if err != nil {
		return nil, err
	}

	manifest, err := ast.Decode(exp, globals)
	if err != nil {
		return nil, err
	}

	if err := ast.Render(manifest, env); err != nil {
		return nil, err
	}

	graph, err := ir.Compile(manifest)
	if err != nil {
		return nil, err
	}

	out, err := ninja.Synthesize(graph)
	if err != nil {
		return nil, err
	}

	return &Result{Document: doc, Manifest: manifest, Graph: graph, Ninja: out}, nil
}

// Package ir implements stage S5: compiling the AST into a validated
// BuildGraph — action deduplication, dependency wiring, cycle detection,
// and command safety validation (spec §4.5).
package ir

import "github.com/leynos/netsuke/internal/diag"

// ActionId is a content hash of a canonicalized recipe plus description and
// deps format (spec §3): identical actions across rules/targets deduplicate
// to a single entry.
type ActionId string

// DepsFormat names the Ninja `deps` mode a rule/action declares ("gcc",
// "msvc", or "" for none).
type DepsFormat string

// Action is a deduplicated recipe shared by one or more edges (spec §3).
type Action struct {
	ID          ActionId
	Recipe      string // canonicalized command/script text
	IsScript    bool
	Description string
	DepsFormat  DepsFormat
	Pool        string
	Impure      bool // spec §4.7: recorded even though it doesn't (yet) affect dedup
}

// BuildEdge is one node of the build graph (spec §3).
type BuildEdge struct {
	Outputs          []string
	ExplicitInputs   []string
	ImplicitInputs   []string
	OrderOnlyInputs  []string
	Action           ActionId
	PerEdgeVars      map[string]string
	Phony            bool
	Always           bool
	Span             diag.Span
}

// PrimaryOutput is the first declared output, used as the edge's
// deterministic sort and diagnostic key (spec §4.5: "edge emission order by
// primary output name").
func (e *BuildEdge) PrimaryOutput() string {
	if len(e.Outputs) == 0 {
		return ""
	}
	return e.Outputs[0]
}

// BuildGraph is the validated IR produced by Compile (spec §3).
type BuildGraph struct {
	Actions             map[ActionId]*Action
	Edges                []*BuildEdge
	Defaults             []string
	DefaultTargetIndex   map[string]int // output name -> index into Edges
}

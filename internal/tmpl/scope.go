package tmpl

// Scope is the three-layer variable stack from spec §4.7: globals, target,
// and iteration. Lookup starts at the innermost populated layer and bubbles
// outward on a miss; whichever layer defines a name last (closest to the
// point of evaluation) wins.
type Scope struct {
	globals   map[string]Value
	target    map[string]Value
	iteration map[string]Value
}

// NewGlobalScope starts a scope with only the manifest-level globals bound.
func NewGlobalScope(globals map[string]Value) *Scope {
	return &Scope{globals: globals}
}

// WithTarget returns a child scope that additionally binds target-local
// vars atop the receiver's globals.
func (s *Scope) WithTarget(vars map[string]Value) *Scope {
	return &Scope{globals: s.globals, target: vars}
}

// WithIteration returns a child scope that additionally binds the
// per-iteration `item`/`index` (or any other captured variables) atop the
// receiver.
func (s *Scope) WithIteration(vars map[string]Value) *Scope {
	return &Scope{globals: s.globals, target: s.target, iteration: vars}
}

// Lookup resolves name, bubbling iteration -> target -> globals.
func (s *Scope) Lookup(name string) (Value, bool) {
	if s == nil {
		return nil, false
	}
	if v, ok := s.iteration[name]; ok {
		return v, true
	}
	if v, ok := s.target[name]; ok {
		return v, true
	}
	if v, ok := s.globals[name]; ok {
		return v, true
	}
	return nil, false
}

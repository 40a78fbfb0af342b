package tmpl

import (
	"os"
	"testing"
)

func TestEval_ComparisonAndLogic(t *testing.T) {
	scope := NewGlobalScope(map[string]Value{"x": int64(3)})
	env := NewEnv()
	r, err := Eval("x > 2 and x < 10", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if r.Value != true {
		t.Fatalf("got %v", r.Value)
	}
}

func TestEval_FilterChain(t *testing.T) {
	scope := NewGlobalScope(map[string]Value{"item": "src/a.c"})
	env := NewEnv()
	r, err := Eval("item | basename | with_suffix('.o')", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if r.Value != "a.o" {
		t.Fatalf("got %v", r.Value)
	}
}

func TestEval_WhenFalseSkips(t *testing.T) {
	scope := NewGlobalScope(map[string]Value{"item": "src/skip.c"})
	env := NewEnv()
	r, err := Eval("item | basename != 'skip.c'", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if r.Value != false {
		t.Fatalf("got %v, want false", r.Value)
	}
}

func TestEval_InOperator(t *testing.T) {
	scope := NewGlobalScope(map[string]Value{
		"x":    "b",
		"list": []Value{"a", "b", "c"},
	})
	env := NewEnv()
	r, err := Eval("x in list", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if r.Value != true {
		t.Fatalf("got %v", r.Value)
	}
}

func TestScope_Bubbling(t *testing.T) {
	globals := map[string]Value{"a": "global"}
	target := map[string]Value{"a": "target", "b": "target-b"}
	iter := map[string]Value{"a": "iter"}

	s := NewGlobalScope(globals).WithTarget(target).WithIteration(iter)
	if v, _ := s.Lookup("a"); v != "iter" {
		t.Fatalf("a = %v, want iter (innermost wins)", v)
	}
	if v, _ := s.Lookup("b"); v != "target-b" {
		t.Fatalf("b = %v, want target-b (bubbles to target)", v)
	}
	if _, ok := s.Lookup("missing"); ok {
		t.Fatalf("expected missing lookup to fail")
	}
}

func TestMacro_DoesNotCaptureIterationScope(t *testing.T) {
	env := NewEnv()
	if err := env.RegisterMacro("pick(a)", "a"); err != nil {
		t.Fatalf("RegisterMacro: %v", err)
	}

	scope := NewGlobalScope(map[string]Value{"item": "outer"}).WithIteration(map[string]Value{"item": "inner"})

	// Passing the argument explicitly works regardless of scoping.
	r, err := Eval("pick(item)", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if r.Value != "inner" {
		t.Fatalf("got %v, want inner (the caller's current scope)", r.Value)
	}

	if err := env.RegisterMacro("leaky()", "item"); err != nil {
		t.Fatalf("RegisterMacro: %v", err)
	}
	// Without an argument the macro sees the caller's globals only, so
	// `item` resolves to the global binding, never the iteration one.
	r, err = Eval("leaky()", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if r.Value != "outer" {
		t.Fatalf("got %v, want outer: macros must not see the caller's iteration scope implicitly", r.Value)
	}
}

func TestRender_Placeholder(t *testing.T) {
	scope := NewGlobalScope(nil)
	env := NewEnv()
	r, err := Render("cc -c {{ ins }} -o {{ outs }}", scope, env)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got := r.Flatten(); got != "cc -c {{ ins }} -o {{ outs }}" {
		t.Fatalf("got %q", got)
	}
	interpCount := 0
	for _, seg := range r.Segments {
		if seg.IsInterp {
			interpCount++
			if !seg.Placeholder {
				t.Fatalf("segment %+v should be a placeholder", seg)
			}
		}
	}
	if interpCount != 2 {
		t.Fatalf("expected 2 interpolation segments, got %d", interpCount)
	}
}

func TestRender_RawEscapeHatch(t *testing.T) {
	scope := NewGlobalScope(map[string]Value{"path": "a b; rm -rf /"})
	env := NewEnv()
	r, err := Render("echo {{ path }}", scope, env)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if r.Segments[1].Raw {
		t.Fatalf("expected the bare interpolation to not be raw")
	}

	r2, err := Render("echo {{ path | raw }}", scope, env)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !r2.Segments[1].Raw {
		t.Fatalf("expected the `raw`-filtered interpolation to be marked raw")
	}
	if r2.Segments[1].Value != "a b; rm -rf /" {
		t.Fatalf("raw value mangled: %q", r2.Segments[1].Value)
	}
}

func TestRender_StrayDirectiveIsError(t *testing.T) {
	scope := NewGlobalScope(nil)
	env := NewEnv()
	if _, err := Render("{% if x %}", scope, env); err == nil {
		t.Fatal("expected an error for a stray '{%' directive")
	}
}

func TestStdlib_Glob(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.c", "b.c", "skip.c"} {
		writeTempFile(t, dir, name)
	}
	env := NewEnv()
	env.BaseDir = dir
	scope := NewGlobalScope(nil)
	r, err := Eval("glob('*.c')", scope, env)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !r.Impure {
		t.Fatalf("glob() must be recorded as impure")
	}
	list, err := AsList(r.Value)
	if err != nil {
		t.Fatalf("AsList: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 files, got %d: %v", len(list), list)
	}
	if list[0] != "a.c" || list[1] != "b.c" || list[2] != "skip.c" {
		t.Fatalf("expected lexicographic order, got %v", list)
	}
}

func writeTempFile(t *testing.T, dir, name string) {
	t.Helper()
	f := dir + "/" + name
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing %s: %v", f, err)
	}
}

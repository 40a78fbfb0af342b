package expand

import (
	"testing"

	"github.com/leynos/netsuke/internal/tmpl"
	"github.com/leynos/netsuke/internal/yamldoc"
)

func mustParse(t *testing.T, src string) *yamldoc.Node {
	t.Helper()
	doc, err := yamldoc.Parse("test.yaml", []byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestExpand_NoForeachOrWhenPassesThrough(t *testing.T) {
	doc := mustParse(t, "targets:\n  - name: a\n    command: echo a\n")
	res, err := Expand(doc, nil, tmpl.NewEnv())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	targets := res.Root.Get("targets")
	if len(targets.Items) != 1 {
		t.Fatalf("expected 1 target, got %d", len(targets.Items))
	}
}

func TestExpand_WhenFiltersEntry(t *testing.T) {
	doc := mustParse(t, "targets:\n  - name: a\n    command: echo a\n    when: \"false\"\n")
	res, err := Expand(doc, nil, tmpl.NewEnv())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if n := len(res.Root.Get("targets").Items); n != 0 {
		t.Fatalf("expected the entry to be dropped, got %d items", n)
	}
}

func TestExpand_ForeachClonesAndCapturesIteration(t *testing.T) {
	doc := mustParse(t, "targets:\n  - foreach: \"items\"\n    name: \"{{ item }}.o\"\n    command: \"echo {{ item }}\"\n")
	globals := map[string]tmpl.Value{"items": []tmpl.Value{"a", "b"}}
	res, err := Expand(doc, globals, tmpl.NewEnv())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	items := res.Root.Get("targets").Items
	if len(items) != 2 {
		t.Fatalf("expected 2 clones, got %d", len(items))
	}
	for i, clone := range items {
		it, ok := res.Iteration[clone]
		if !ok {
			t.Fatalf("clone %d missing iteration scope", i)
		}
		if it["index"].(int64) != int64(i) {
			t.Fatalf("clone %d index = %v", i, it["index"])
		}
	}
	if items[0].Get("foreach") != nil {
		t.Fatalf("expected foreach key stripped from the clone")
	}
}

func TestExpand_ForeachWithWhenFiltersItems(t *testing.T) {
	doc := mustParse(t, "targets:\n  - foreach: \"items\"\n    when: \"item != 'b'\"\n    name: \"{{ item }}.o\"\n    command: \"echo {{ item }}\"\n")
	globals := map[string]tmpl.Value{"items": []tmpl.Value{"a", "b", "c"}}
	res, err := Expand(doc, globals, tmpl.NewEnv())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if n := len(res.Root.Get("targets").Items); n != 2 {
		t.Fatalf("expected 2 surviving clones, got %d", n)
	}
}

func TestExpand_ForeachNotIterableRejected(t *testing.T) {
	doc := mustParse(t, "targets:\n  - foreach: \"name\"\n    name: x\n    command: echo x\n")
	_, err := Expand(doc, map[string]tmpl.Value{"name": "not-a-list"}, tmpl.NewEnv())
	if err == nil {
		t.Fatalf("expected a ForeachNotIterable error")
	}
}

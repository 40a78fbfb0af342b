package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leynos/netsuke/internal/diag"
)

func TestCacheDir_WriteAtomicThenRead(t *testing.T) {
	root := t.TempDir()
	c, err := NewCacheDir(root)
	if err != nil {
		t.Fatalf("NewCacheDir: %v", err)
	}
	if err := c.WriteAtomic("fetch/abc", []byte("payload")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	data, ok, err := c.Read("fetch/abc")
	if err != nil || !ok {
		t.Fatalf("Read: data=%q ok=%v err=%v", data, ok, err)
	}
	if string(data) != "payload" {
		t.Fatalf("data = %q", data)
	}
	// No stray temp files should remain in the cache directory.
	entries, err := os.ReadDir(filepath.Join(root, "fetch"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "abc" {
		t.Fatalf("entries = %v", entries)
	}
}

func TestCacheDir_ReadMiss(t *testing.T) {
	c, err := NewCacheDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewCacheDir: %v", err)
	}
	_, ok, err := c.Read("fetch/missing")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if ok {
		t.Fatalf("expected cache miss")
	}
}

func TestCacheDir_Remove(t *testing.T) {
	c, err := NewCacheDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewCacheDir: %v", err)
	}
	if err := c.WriteAtomic("fetch/abc", []byte("x")); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}
	if err := c.Remove("fetch/abc"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := c.Read("fetch/abc"); ok {
		t.Fatalf("expected entry removed")
	}
	// Removing an already-absent entry is not an error.
	if err := c.Remove("fetch/abc"); err != nil {
		t.Fatalf("Remove on absent entry: %v", err)
	}
}

func TestCacheDir_RejectsTraversal(t *testing.T) {
	c, err := NewCacheDir(t.TempDir())
	if err != nil {
		t.Fatalf("NewCacheDir: %v", err)
	}
	if err := c.WriteAtomic("../escape", []byte("x")); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if err := c.WriteAtomic("/absolute", []byte("x")); err == nil {
		t.Fatalf("expected absolute path to be rejected")
	}
}

func TestNetwork_CheckReturnsPolicyDiagnostic(t *testing.T) {
	n := DefaultNetwork()
	err := n.Check("http://example.com")
	d, ok := diag.As(err)
	if !ok {
		t.Fatalf("expected a *diag.Diagnostic, got %v", err)
	}
	if d.Kind != diag.Policy {
		t.Fatalf("Kind = %v, want Policy", d.Kind)
	}
}

func TestNetwork_CheckDefaultDenyReturnsPolicyDiagnostic(t *testing.T) {
	n := DefaultNetwork()
	err := n.Check("https://example.com")
	d, ok := diag.As(err)
	if !ok || d.Kind != diag.Policy {
		t.Fatalf("got %v", err)
	}
}

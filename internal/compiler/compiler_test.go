package compiler

import (
	"strings"
	"testing"

	"github.com/leynos/netsuke/internal/diag"
	"github.com/leynos/netsuke/internal/ingest"
	"github.com/leynos/netsuke/internal/tmpl"
)

const sampleManifest = `
netsuke_version: "1.0.0"
vars:
  cc: gcc
rules:
  - name: compile
    command: "{{ cc }} -c {{ ins }} -o {{ outs }}"
    description: "Compiling {{ outs }}"
targets:
  - name: out.o
    sources: [out.c]
    rule: compile
  - name: all
    command: "true"
    deps: [out.o]
    phony: true
defaults: [all]
`

func TestCompile_EndToEnd(t *testing.T) {
	src := ingest.FromBytes("Netsukefile", []byte(sampleManifest))
	res, err := Compile(src, tmpl.NewEnv())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(res.Graph.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(res.Graph.Edges))
	}
	if !strings.Contains(res.Ninja, "gcc -c $in -o $out") {
		t.Fatalf("expected canonicalized command in output:\n%s", res.Ninja)
	}
	if !strings.Contains(res.Ninja, "default all") {
		t.Fatalf("expected default line:\n%s", res.Ninja)
	}
}

func TestCompile_PropagatesDiagnostics(t *testing.T) {
	src := ingest.FromBytes("Netsukefile", []byte("netsuke_version: \"1.0.0\"\n"))
	_, err := Compile(src, tmpl.NewEnv())
	d, ok := diag.As(err)
	if !ok {
		t.Fatalf("expected *diag.Diagnostic, got %v", err)
	}
	if d.Code != "MissingField" {
		t.Fatalf("got code %q", d.Code)
	}
}

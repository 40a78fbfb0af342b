package main

import (
	"reflect"
	"testing"

	"github.com/leynos/netsuke/internal/compiler"
	"github.com/leynos/netsuke/internal/ir"
)

func TestCollectOutputs_SortsAndDedups(t *testing.T) {
	result := &compiler.Result{
		Graph: &ir.BuildGraph{
			Edges: []*ir.BuildEdge{
				{Outputs: []string{"b.o"}},
				{Outputs: []string{"a.o", "a.alias"}},
			},
		},
	}
	got := collectOutputs(result)
	want := []string{"a.alias", "a.o", "b.o"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collectOutputs = %v, want %v", got, want)
	}
}

func TestCollectOutputs_Empty(t *testing.T) {
	result := &compiler.Result{Graph: &ir.BuildGraph{}}
	if got := collectOutputs(result); len(got) != 0 {
		t.Fatalf("expected no outputs, got %v", got)
	}
}

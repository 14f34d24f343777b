package dag

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func nop(context.Context, Inputs) ([]string, error) { return nil, nil }

func task(name string, deps ...string) Task {
	return Task{Name: name, Deps: deps, Run: nop}
}

func TestNewGraphRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tasks   []Task
		kind    error
		wantMsg string
	}{
		{name: "empty", tasks: nil, kind: ErrInvalidGraph, wantMsg: "no tasks"},
		{name: "blank_name", tasks: []Task{task("")}, kind: ErrInvalidGraph, wantMsg: "name is required"},
		{name: "duplicate", tasks: []Task{task("a"), task("a")}, kind: ErrInvalidGraph, wantMsg: "duplicate task name"},
		{name: "nil_body", tasks: []Task{{Name: "a"}}, kind: ErrInvalidGraph, wantMsg: "no body"},
		{name: "unknown_dep", tasks: []Task{task("a", "ghost")}, kind: ErrInvalidGraph, wantMsg: `unknown task "ghost"`},
		{name: "self_loop", tasks: []Task{task("a", "a")}, kind: ErrInvalidGraph, wantMsg: "self-loop"},
		{name: "duplicate_edge", tasks: []Task{task("a"), task("b", "a", "a")}, kind: ErrInvalidGraph, wantMsg: "duplicate edge"},
		{
			name:    "cycle",
			tasks:   []Task{task("a", "c"), task("b", "a"), task("c", "b"), task("d")},
			kind:    ErrCycleFound,
			wantMsg: "a -> b -> c -> a",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g, err := NewGraph(tt.tasks)
			if g != nil {
				t.Fatalf("NewGraph returned a graph for invalid input")
			}
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want kind %v", err, tt.kind)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("err = %q, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestGraphOrderAndDepth(t *testing.T) {
	t.Parallel()

	// Shape of the sales pipeline: readers feed filters, everything meets in merge.
	g, err := NewGraph([]Task{
		task("merge", "cats", "filter", "drop", "sales"),
		task("filter", "stores"),
		task("drop", "products"),
		task("cats"),
		task("products"),
		task("sales"),
		task("stores"),
		task("move", "filter", "drop", "merge"),
	})
	if err != nil {
		t.Fatalf("NewGraph: %v", err)
	}

	want := []string{"cats", "products", "drop", "sales", "stores", "filter", "merge", "move"}
	if got := g.TopologicalOrder(); !reflect.DeepEqual(got, want) {
		t.Fatalf("TopologicalOrder = %v, want %v", got, want)
	}

	for name, depth := range map[string]int{"cats": 0, "filter": 1, "merge": 2, "move": 3} {
		if got, ok := g.Depth(name); !ok || got != depth {
			t.Errorf("Depth(%s) = %d,%v want %d", name, got, ok, depth)
		}
	}
	if _, ok := g.Depth("nope"); ok {
		t.Error("Depth(nope) ok = true")
	}
	if got := g.Deps("merge"); !reflect.DeepEqual(got, []string{"cats", "drop", "filter", "sales"}) {
		t.Errorf("Deps(merge) = %v", got)
	}
	if g.Len() != 8 || len(g.Names()) != 8 {
		t.Errorf("Len = %d", g.Len())
	}
}

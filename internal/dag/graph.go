package dag

import (
	"container/heap"
	"context"
	"sort"
)

// Inputs maps a dependency name to the paths it produced.
type Inputs map[string][]string

// Path returns the first output of dependency dep, or "" when it produced
// none.
func (in Inputs) Path(dep string) string {
	if p := in[dep]; len(p) > 0 {
		return p[0]
	}
	return ""
}

// Func is the body of a task. It returns the paths it produced.
type Func func(ctx context.Context, in Inputs) ([]string, error)

// Task is a node definition: a unique name, the names it depends on, and its
// body.
type Task struct {
	Name string
	Deps []string
	Run  Func
}

// Graph is a validated, immutable DAG. Nodes are indexed in name order so
// every traversal is deterministic. It is safe for concurrent reads.
type Graph struct {
	tasks    []Task
	index    map[string]int
	outgoing [][]int // sorted ascending
	incoming [][]int // sorted ascending
	depth    []int
}

// NewGraph builds and validates a Graph. It rejects an empty task list,
// empty or duplicate names, a nil body, dependencies on unknown tasks,
// duplicate or self edges, and cycles.
func NewGraph(tasks []Task) (*Graph, error) {
	if len(tasks) == 0 {
		return nil, invalidf("no tasks")
	}

	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	g := &Graph{
		tasks:    sorted,
		index:    make(map[string]int, len(sorted)),
		outgoing: make([][]int, len(sorted)),
		incoming: make([][]int, len(sorted)),
	}
	for i, t := range sorted {
		if t.Name == "" {
			return nil, invalidf("task name is required")
		}
		if _, dup := g.index[t.Name]; dup {
			return nil, invalidf("duplicate task name: %q", t.Name)
		}
		if t.Run == nil {
			return nil, invalidf("task %q has no body", t.Name)
		}
		g.index[t.Name] = i
	}

	for to, t := range sorted {
		seen := make(map[string]struct{}, len(t.Deps))
		for _, dep := range t.Deps {
			from, ok := g.index[dep]
			if !ok {
				return nil, invalidf("task %q depends on unknown task %q", t.Name, dep)
			}
			if from == to {
				return nil, invalidf("self-loop: %q", t.Name)
			}
			if _, dup := seen[dep]; dup {
				return nil, invalidf("duplicate edge: %q -> %q", dep, t.Name)
			}
			seen[dep] = struct{}{}
			g.outgoing[from] = append(g.outgoing[from], to)
			g.incoming[to] = append(g.incoming[to], from)
		}
	}
	for i := range g.tasks {
		sort.Ints(g.outgoing[i])
		sort.Ints(g.incoming[i])
	}

	order := g.topoOrder()
	if len(order) != len(g.tasks) {
		return nil, cycleError(g.findCycle())
	}
	g.depth = make([]int, len(g.tasks))
	for _, u := range order {
		for _, p := range g.incoming[u] {
			if d := g.depth[p] + 1; d > g.depth[u] {
				g.depth[u] = d
			}
		}
	}
	return g, nil
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.tasks) }

// Names returns every task name in sorted order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.tasks))
	for i, t := range g.tasks {
		out[i] = t.Name
	}
	return out
}

// Task returns the definition of the named task.
func (g *Graph) Task(name string) (Task, bool) {
	i, ok := g.index[name]
	if !ok {
		return Task{}, false
	}
	return g.tasks[i], true
}

// Deps returns the direct dependencies of name in sorted order.
func (g *Graph) Deps(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.incoming[i]))
	for _, p := range g.incoming[i] {
		out = append(out, g.tasks[p].Name)
	}
	return out
}

// Depth is the length of the longest path from a root to name.
func (g *Graph) Depth(name string) (int, bool) {
	i, ok := g.index[name]
	if !ok {
		return 0, false
	}
	return g.depth[i], true
}

// TopologicalOrder returns the task names such that every task follows all
// of its dependencies. Ties are broken by name.
func (g *Graph) TopologicalOrder() []string {
	order := g.topoOrder()
	out := make([]string, len(order))
	for i, idx := range order {
		out[i] = g.tasks[idx].Name
	}
	return out
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	x := old[len(old)-1]
	*h = old[:len(old)-1]
	return x
}

// topoOrder is Kahn's algorithm with a min-heap ready queue. It returns fewer
// than Len() indices when the graph has a cycle.
func (g *Graph) topoOrder() []int {
	indeg := make([]int, len(g.tasks))
	ready := &intMinHeap{}
	for i := range g.tasks {
		indeg[i] = len(g.incoming[i])
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}
	out := make([]int, 0, len(g.tasks))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	return out
}

// findCycle returns one cycle as a closed path of names, first == last.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)
	color := make([]int, len(g.tasks))
	var stack []int
	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		stack = append(stack, u)
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				if dfs(v) {
					return true
				}
			case gray:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == v {
						cycle = append(append(cycle, stack[i:]...), v)
						return true
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[u] = black
		return false
	}
	for i := range g.tasks {
		if color[i] == white && dfs(i) {
			break
		}
	}

	out := make([]string, len(cycle))
	for i, idx := range cycle {
		out[i] = g.tasks[idx].Name
	}
	return out
}

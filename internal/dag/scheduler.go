package dag

import "sort"

// GetReadyTasks returns the PENDING tasks whose dependencies are all
// COMPLETED, sorted by (depth, name). It does not mutate state.
func GetReadyTasks(g *Graph, state ExecutionState) []string {
	var ready []string
	for i, t := range g.tasks {
		if state[t.Name] != TaskPending {
			continue
		}
		ok := true
		for _, p := range g.incoming[i] {
			if state[g.tasks[p].Name] != TaskCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t.Name)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		a, b := g.depth[g.index[ready[i]]], g.depth[g.index[ready[j]]]
		if a != b {
			return a < b
		}
		return ready[i] < ready[j]
	})
	return ready
}

package dag

import (
	"container/heap"
	"fmt"
)

// TaskState is the runtime state of one task within a run.
type TaskState string

const (
	TaskPending   TaskState = "PENDING"
	TaskRunning   TaskState = "RUNNING"
	TaskCompleted TaskState = "COMPLETED"
	TaskFailed    TaskState = "FAILED"
	TaskSkipped   TaskState = "SKIPPED"
)

// ExecutionState maps task name to its current state. The Graph itself is
// never mutated, so one Graph can back many runs.
type ExecutionState map[string]TaskState

// NewExecutionState returns a state with every task of g PENDING.
func NewExecutionState(g *Graph) ExecutionState {
	s := make(ExecutionState, g.Len())
	for _, t := range g.tasks {
		s[t.Name] = TaskPending
	}
	return s
}

// IsTerminal reports whether s is a final state.
func IsTerminal(s TaskState) bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped:
		return true
	default:
		return false
	}
}

// Transition moves taskName from one state to another. from must match the
// current state and the move must be one of PENDING->RUNNING,
// PENDING->SKIPPED, RUNNING->COMPLETED or RUNNING->FAILED.
func Transition(state ExecutionState, taskName string, from, to TaskState) error {
	cur, ok := state[taskName]
	if !ok {
		return fmt.Errorf("unknown task in state: %q", taskName)
	}
	if cur != from {
		return fmt.Errorf("invalid transition for %q: expected %s, got %s", taskName, from, cur)
	}
	if !allowed(from, to) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", taskName, from, to)
	}
	state[taskName] = to
	return nil
}

func allowed(from, to TaskState) bool {
	switch from {
	case TaskPending:
		return to == TaskRunning || to == TaskSkipped
	case TaskRunning:
		return to == TaskCompleted || to == TaskFailed
	default:
		return false
	}
}

// FailAndPropagate marks taskName FAILED and every task reachable from it
// SKIPPED. It returns the names it skipped, in index order. A downstream
// task found RUNNING is an invariant violation.
func FailAndPropagate(g *Graph, state ExecutionState, taskName string) ([]string, error) {
	start, ok := g.index[taskName]
	if !ok {
		return nil, fmt.Errorf("unknown task: %q", taskName)
	}
	switch cur := state[taskName]; cur {
	case TaskRunning:
		state[taskName] = TaskFailed
	case TaskFailed:
	default:
		return nil, fmt.Errorf("cannot fail %q from state %s", taskName, cur)
	}

	visited := make([]bool, len(g.tasks))
	visited[start] = true
	hq := &intMinHeap{}
	for _, d := range g.outgoing[start] {
		heap.Push(hq, d)
	}

	var skipped []string
	for hq.Len() > 0 {
		u := heap.Pop(hq).(int)
		if visited[u] {
			continue
		}
		visited[u] = true

		name := g.tasks[u].Name
		switch state[name] {
		case TaskPending:
			state[name] = TaskSkipped
			skipped = append(skipped, name)
		case TaskRunning:
			return skipped, fmt.Errorf("downstream task %q is RUNNING during failure propagation", name)
		}
		for _, v := range g.outgoing[u] {
			if !visited[v] {
				heap.Push(hq, v)
			}
		}
	}
	return skipped, nil
}

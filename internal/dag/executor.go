package dag

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"salesetl/internal/metrics"
	"salesetl/internal/retry"
)

// Executor runs a Graph. Independent ready tasks run concurrently, at most
// MaxParallel at a time. Every task gets the same retry Policy.
type Executor struct {
	Graph       *Graph
	Policy      retry.Policy
	MaxParallel int

	// Job labels metrics and logs.
	Job string

	// Verbose logs every state transition, not just failures and retries.
	Verbose bool
}

// RunResult is the outcome of one run. Every map is keyed by task name.
type RunResult struct {
	States    ExecutionState
	Outputs   map[string][]string
	Attempts  map[string]int
	Errors    map[string]error
	Durations map[string]time.Duration
}

// Failed returns the names of FAILED tasks in sorted order.
func (r *RunResult) Failed() []string {
	return r.withState(TaskFailed)
}

// Skipped returns the names of SKIPPED tasks in sorted order.
func (r *RunResult) Skipped() []string {
	return r.withState(TaskSkipped)
}

func (r *RunResult) withState(s TaskState) []string {
	var out []string
	for _, name := range sortedKeys(r.States) {
		if r.States[name] == s {
			out = append(out, name)
		}
	}
	return out
}

type taskResult struct {
	name     string
	out      []string
	attempts int
	err      error
	took     time.Duration
}

// Run executes the graph to completion. A failed task skips all of its
// transitive dependents while unrelated branches keep running. Once ctx is
// done no new task starts and every task still PENDING ends SKIPPED.
//
// The returned error is nil only when every task COMPLETED; otherwise it
// joins one *TaskError per failed task (plus ctx.Err() if the run was
// cancelled). The RunResult is always non-nil.
func (e *Executor) Run(ctx context.Context) (*RunResult, error) {
	g := e.Graph
	res := &RunResult{
		States:    NewExecutionState(g),
		Outputs:   make(map[string][]string, g.Len()),
		Attempts:  make(map[string]int, g.Len()),
		Errors:    make(map[string]error),
		Durations: make(map[string]time.Duration, g.Len()),
	}

	limit := e.MaxParallel
	if limit <= 0 {
		limit = 1
	}
	var eg errgroup.Group
	eg.SetLimit(limit)

	done := make(chan taskResult, g.Len())
	running := 0
	var violation error

	for {
		if ctx.Err() == nil {
			for _, name := range GetReadyTasks(g, res.States) {
				name := name
				if err := Transition(res.States, name, TaskPending, TaskRunning); err != nil {
					violation = err
					break
				}
				in := e.inputs(name, res.Outputs)
				running++
				e.logf("dag: start task=%s", name)
				eg.Go(func() error {
					done <- e.runTask(ctx, name, in)
					return nil
				})
			}
		}
		if running == 0 || violation != nil {
			break
		}

		r := <-done
		running--
		res.Attempts[r.name] = r.attempts
		res.Durations[r.name] = r.took
		metrics.RecordTask(e.Job, r.name, r.err, r.took)

		if r.err == nil {
			res.Outputs[r.name] = r.out
			if err := Transition(res.States, r.name, TaskRunning, TaskCompleted); err != nil {
				violation = err
			}
			e.logf("dag: done task=%s attempts=%d took=%s outputs=%v", r.name, r.attempts, r.took.Truncate(time.Millisecond), r.out)
			continue
		}

		res.Errors[r.name] = r.err
		skipped, err := FailAndPropagate(g, res.States, r.name)
		if err != nil {
			violation = err
		}
		log.Printf("dag: failed task=%s attempts=%d err=%v skipped=%v", r.name, r.attempts, r.err, skipped)
	}
	_ = eg.Wait()

	// Drain results of tasks still running when a violation stopped the loop.
	close(done)
	for r := range done {
		res.Attempts[r.name] = r.attempts
		if r.err != nil {
			res.Errors[r.name] = r.err
		}
	}

	for name, s := range res.States {
		if s == TaskPending {
			res.States[name] = TaskSkipped
		}
	}

	var errs []error
	for _, name := range res.Failed() {
		errs = append(errs, &TaskError{Task: name, Attempts: res.Attempts[name], Err: res.Errors[name]})
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	if violation != nil {
		errs = append(errs, violation)
	}
	return res, errors.Join(errs...)
}

// inputs copies the outputs of name's direct dependencies.
func (e *Executor) inputs(name string, outputs map[string][]string) Inputs {
	deps := e.Graph.Deps(name)
	in := make(Inputs, len(deps))
	for _, d := range deps {
		in[d] = append([]string(nil), outputs[d]...)
	}
	return in
}

func (e *Executor) runTask(ctx context.Context, name string, in Inputs) taskResult {
	t, _ := e.Graph.Task(name)

	p := e.Policy
	userHook := p.OnRetry
	p.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Printf("dag: retry task=%s attempt=%d/%d wait=%s err=%v", name, attempt, p.Attempts(), wait, err)
		metrics.RecordRetry(e.Job, name)
		if userHook != nil {
			userHook(attempt, err, wait)
		}
	}

	start := time.Now()
	var out []string
	attempts, err := retry.Do(ctx, p, func(ctx context.Context, _ int) error {
		var runErr error
		out, runErr = t.Run(ctx, in)
		return runErr
	})
	if err != nil {
		out = nil
	}
	return taskResult{name: name, out: out, attempts: attempts, err: err, took: time.Since(start)}
}

func (e *Executor) logf(format string, args ...any) {
	if e.Verbose {
		log.Printf(format, args...)
	}
}

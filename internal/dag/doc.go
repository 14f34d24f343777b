// Package dag holds the task graph the pipeline runs on: a validated,
// immutable set of named tasks with dependency edges, a per-run state map,
// a deterministic ready-task scheduler, and an executor that runs
// independent tasks concurrently with a uniform retry policy.
//
// Tasks exchange nothing but output file paths. A task receives the outputs
// of its direct dependencies and returns its own.
package dag

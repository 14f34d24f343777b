// Package pipeline wires the sales revenue tasks into a DAG and runs it.
//
// Every task reads its inputs from the paths its dependencies returned,
// writes exactly the files named in this package, and returns their paths.
// Nothing but paths travels between tasks. Paths come from the Pipeline's
// config; there are no package-level directories.
//
//	fetch_stores     -> filter_us_stores
//	fetch_products   -> remove_product_launch_date
//	fetch_categories, fetch_sales, both filters -> merge_apple_data
//	both filters, merge_apple_data -> move_datasets_to_intermediate
//	merge_apple_data -> add_revenue_column -> aggregate_revenue_by_category
//	aggregate_revenue_by_category -> plot_revenue_by_category, publish_revenue_by_category
//	plot, publish, move -> clear_intermediate_data
package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"salesetl/internal/config"
	"salesetl/internal/dag"
	"salesetl/internal/metrics"
	"salesetl/internal/retry"
	"salesetl/internal/table"
)

// Pipeline is one run of the sales revenue DAG. Build a new one per run.
type Pipeline struct {
	cfg   config.Pipeline
	runID string

	// Verbose logs every task start and finish.
	Verbose bool

	now func() time.Time

	mu           sync.Mutex
	fingerprints map[string]string
}

// New returns a Pipeline for cfg. An empty runID gets a random UUID.
func New(cfg config.Pipeline, runID string) *Pipeline {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Pipeline{
		cfg:          cfg,
		runID:        runID,
		now:          time.Now,
		fingerprints: map[string]string{},
	}
}

// RunID identifies this run in logs, the summary and loaded DB rows.
func (p *Pipeline) RunID() string { return p.runID }

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() config.Pipeline { return p.cfg }

// RetryPolicy is applied to every task. With retry_schema_errors disabled,
// missing-input and schema failures are not retried.
func (p *Pipeline) RetryPolicy() retry.Policy {
	pol := retry.Policy{
		Retries: p.cfg.Retry.Retries,
		Delay:   p.cfg.Retry.DelayDuration(),
	}
	if !p.cfg.Retry.RetriesSchemaErrors() {
		pol.Retryable = IsRetriable
	}
	return pol
}

// Graph builds and validates the task graph.
func (p *Pipeline) Graph() (*dag.Graph, error) {
	return dag.NewGraph(p.Tasks())
}

// Run executes the whole DAG once and returns its summary. The error is
// non-nil when any task failed; the summary is returned either way.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	g, err := p.Graph()
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	ex := &dag.Executor{
		Graph:       g,
		Policy:      p.RetryPolicy(),
		MaxParallel: p.cfg.Runtime.MaxParallel,
		Job:         p.cfg.Job,
		Verbose:     p.Verbose,
	}

	started := p.now()
	log.Printf("pipeline: run start job=%s run_id=%s input=%s intermediate=%s results=%s",
		p.cfg.Job, p.runID, p.cfg.Dirs.Input, p.cfg.Dirs.Intermediate, p.cfg.Dirs.Results)

	res, runErr := ex.Run(ctx)
	sum := p.summarize(g, res, started, p.now())

	log.Printf("pipeline: run end job=%s run_id=%s status=%s failed=%v skipped=%v took=%s",
		p.cfg.Job, p.runID, sum.Status, res.Failed(), res.Skipped(), sum.Finished.Sub(sum.Started).Truncate(time.Millisecond))
	return sum, runErr
}

// read loads a CSV and maps failures to typed errors.
func (p *Pipeline) read(ctx context.Context, path string) (*table.Table, error) {
	t, err := table.ReadFile(ctx, path)
	if err != nil {
		return nil, classifyRead(path, err)
	}
	metrics.RecordRows(p.cfg.Job, "read", int64(t.Len()))
	return t, nil
}

// write stores t at path and records its fingerprint for the summary.
func (p *Pipeline) write(path string, t *table.Table) error {
	fp, err := table.WriteFile(path, t)
	if err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	p.mu.Lock()
	p.fingerprints[path] = fp.String()
	p.mu.Unlock()
	log.Printf("pipeline: wrote path=%s rows=%d cols=%d xxh3=%s", path, t.Len(), len(t.Columns), fp)
	return nil
}

// ensureDir creates the working directory if needed.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &IOError{Op: "mkdir", Path: dir, Err: err}
	}
	return nil
}

// requireDir fails with an IOError matching os.ErrNotExist when dir is
// absent. Output directories that are not ours to create go through here.
func requireDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		return &IOError{Op: "stat", Path: dir, Err: err}
	}
	if !fi.IsDir() {
		return &IOError{Op: "stat", Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return nil
}

func schemaErr(path string, err error) error {
	if err == nil {
		return nil
	}
	return &SchemaError{Path: path, Err: err}
}

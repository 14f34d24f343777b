package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/notify"
	"salesetl/internal/notify/amqp"
	"salesetl/internal/pipeline"
)

// newNotifier is a test seam.
var newNotifier = func(cfg config.AMQP) (notify.Notifier, error) {
	if cfg.URL == "" {
		return notify.Nop{}, nil
	}
	pub, err := amqp.New(amqp.Config{URL: cfg.URL, Exchange: cfg.Exchange, RoutingKey: cfg.RoutingKey})
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// notifyTimeout bounds the end-of-run publish so a dead broker cannot hold
// the process.
const notifyTimeout = 30 * time.Second

type runner struct {
	cfg     config.Pipeline
	verbose bool

	// runs counts started runs; the scheduler logs it.
	runs atomic.Int64
}

// runOnce executes one pipeline run, writes its summary into the results
// directory and publishes it. Summary and notification failures are logged;
// the returned error is the run's.
func (r *runner) runOnce(ctx context.Context) error {
	n := r.runs.Add(1)
	p := pipeline.New(r.cfg, "")
	p.Verbose = r.verbose
	start := time.Now()

	sum, runErr := p.Run(ctx)
	if sum == nil {
		return runErr
	}

	path := filepath.Join(r.cfg.Dirs.Results, pipeline.SummaryFile)
	if err := sum.WriteFile(path); err != nil {
		log.Printf("summary: write %s: %v", path, err)
	} else if r.verbose {
		log.Printf("summary: wrote %s", path)
	}

	if err := r.publish(ctx, sum); err != nil {
		log.Printf("notify: run_id=%s: %v", sum.RunID, err)
	}

	log.Printf("run %d: run_id=%s status=%s failed=%v took=%s",
		n, sum.RunID, sum.Status, sum.Failed(), time.Since(start).Truncate(time.Millisecond))
	if runErr != nil {
		return fmt.Errorf("run %s: %w", sum.RunID, runErr)
	}
	return nil
}

func (r *runner) publish(ctx context.Context, sum *pipeline.Summary) error {
	nt, err := newNotifier(r.cfg.Notify.AMQP)
	if err != nil {
		return err
	}
	defer nt.Close()

	msg, err := sum.Message()
	if err != nil {
		return err
	}
	// Publish even when the run was cancelled.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	return nt.Notify(ctx, msg)
}

// schedule runs the pipeline on the cron expression expr until ctx is
// done. A tick that fires while a run is still going is skipped. Failed runs
// are logged and do not stop the schedule.
func (r *runner) schedule(ctx context.Context, expr string) error {
	logger := cron.PrintfLogger(log.Default())
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := c.AddFunc(expr, func() {
		if err := r.runOnce(ctx); err != nil {
			log.Printf("scheduler: %v", err)
		}
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", expr, err)
	}

	log.Printf("scheduler: job=%s schedule=%q", r.cfg.Job, expr)
	c.Start()
	<-ctx.Done()
	log.Printf("scheduler: stopping after %d runs", r.runs.Load())
	<-c.Stop().Done()
	return nil
}

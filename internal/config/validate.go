// This file adds a lightweight linter for Pipeline values. It performs static
// checks over a decoded (and defaulted) Pipeline and returns a list of issues
// that the CLI surfaces before running anything.

package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "dirs.input", "storage.db.dsn").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidatePipeline performs static validation of p. It does not touch the
// filesystem; missing input files are reported by the reader tasks at run time.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateDirs(p.Dirs)...)
	issues = append(issues, validateFilter(p.Filter)...)
	issues = append(issues, validateRetry(p.Retry)...)
	issues = append(issues, validateSchedule(p.Schedule)...)
	issues = append(issues, validateStorage(p.Storage)...)
	issues = append(issues, validateMetrics(p.Metrics)...)
	issues = append(issues, validateNotify(p.Notify)...)

	if p.Runtime.MaxParallel < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "runtime.max_parallel",
			Message:  "max_parallel must not be negative",
		})
	}
	return issues
}

func validateDirs(d Dirs) []Issue {
	var issues []Issue
	for _, f := range []struct{ path, val string }{
		{"dirs.input", d.Input},
		{"dirs.intermediate", d.Intermediate},
		{"dirs.results", d.Results},
	} {
		if strings.TrimSpace(f.val) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     f.path,
				Message:  "directory must not be empty",
			})
		}
	}
	if d.Intermediate != "" && d.Intermediate == d.Input {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dirs.intermediate",
			Message:  "intermediate directory must differ from the input directory; cleanup empties it",
		})
	}
	if d.Results != "" && d.Results == d.Intermediate {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "dirs.results",
			Message:  "results directory must differ from the intermediate directory; cleanup empties it",
		})
	}
	return issues
}

func validateFilter(f Filter) []Issue {
	var issues []Issue
	if f.Country == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "filter.country",
			Message:  "country must not be empty",
		})
	} else if strings.TrimSpace(f.Country) != f.Country {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "filter.country",
			Message:  fmt.Sprintf("country %q has surrounding whitespace; matching is exact", f.Country),
		})
	}
	if strings.TrimSpace(f.DropColumn) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "filter.drop_column",
			Message:  "drop_column must not be empty",
		})
	}
	return issues
}

func validateRetry(r Retry) []Issue {
	var issues []Issue
	if r.Retries < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "retry.retries",
			Message:  "retries must not be negative after defaults are applied",
		})
	}
	if r.DelayDuration() < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "retry.delay",
			Message:  "delay must not be negative",
		})
	}
	if r.Retries > 0 && r.RetriesSchemaErrors() {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "retry.retry_schema_errors",
			Message:  "schema and missing-input failures are retried although a retry cannot change their outcome",
		})
	}
	return issues
}

func validateSchedule(s string) []Issue {
	if s == "" || s == DefaultSchedule {
		return nil
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return []Issue{{
			Severity: SeverityError,
			Path:     "schedule",
			Message:  fmt.Sprintf("invalid cron expression %q: %v", s, err),
		}}
	}
	return nil
}

func validateStorage(s Storage) []Issue {
	if strings.TrimSpace(s.Kind) == "" {
		return nil
	}
	var issues []Issue

	known := map[string]struct{}{
		"postgres": {},
		"mysql":    {},
		"mssql":    {},
		"sqlite":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", s.Kind),
		})
	}
	if strings.TrimSpace(s.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.dsn",
			Message:  "storage.db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(s.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.table",
			Message:  "storage.db.table must not be empty",
		})
	}
	if s.DB.BatchSize < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.db.batch_size",
			Message:  "batch_size must not be negative",
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none":
		return nil
	case "pushgateway":
		return nil // URL falls back to flag/env/default
	case "datadog":
		if strings.TrimSpace(m.Addr) == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.addr",
				Message:  "datadog backend requires a DogStatsD address",
			}}
		}
		return nil
	default:
		return []Issue{{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend),
		}}
	}
}

func validateNotify(n Notify) []Issue {
	if n.AMQP.URL == "" {
		return nil
	}
	if strings.TrimSpace(n.AMQP.Exchange) == "" && strings.TrimSpace(n.AMQP.RoutingKey) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "notify.amqp",
			Message:  "amqp notification needs an exchange or a routing key (queue name)",
		}}
	}
	return nil
}

// Package config defines the configuration model for the sales revenue
// pipeline. A Pipeline is decoded from a JSON (or YAML) file and passed
// explicitly into every task at construction time; there are no package-level
// path constants.
//
// Example (trimmed):
//
//	{
//	  "job": "sales_pipeline",
//	  "dirs":    { "input": "/opt/airflow/data" },
//	  "filter":  { "country": "United States" },
//	  "retry":   { "retries": 1, "delay": "2m" },
//	  "storage": { "kind": "postgres", "db": { "dsn": "...", "table": "revenue_by_category" } }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultJob         = "sales_pipeline"
	DefaultInputDir    = "/opt/airflow/data"
	DefaultCountry     = "United States"
	DefaultDropColumn  = "Launch_Date"
	DefaultRetries     = 1
	DefaultRetryDelay  = 2 * time.Minute
	DefaultMaxParallel = 4
	DefaultSchedule    = "@once"
	DefaultTable       = "revenue_by_category"
)

// Pipeline is the top-level object decoded from a pipeline file.
type Pipeline struct {
	// Job names the run for metrics labels and notifications.
	Job string `json:"job" yaml:"job"`

	Dirs    Dirs    `json:"dirs" yaml:"dirs"`
	Filter  Filter  `json:"filter" yaml:"filter"`
	Retry   Retry   `json:"retry" yaml:"retry"`
	Runtime Runtime `json:"runtime" yaml:"runtime"`

	// Schedule is "@once" or a cron expression.
	Schedule string `json:"schedule" yaml:"schedule"`

	Storage Storage `json:"storage" yaml:"storage"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
	Notify  Notify  `json:"notify" yaml:"notify"`
}

// Dirs holds the three directories the pipeline touches.
type Dirs struct {
	// Input holds the four source CSVs. Filter outputs are staged here too
	// until the archival task relocates them.
	Input string `json:"input" yaml:"input"`

	// Intermediate is the working directory emptied by the cleanup task.
	Intermediate string `json:"intermediate" yaml:"intermediate"`

	// Results receives the chart and the published aggregate.
	Results string `json:"results" yaml:"results"`
}

// Filter configures the two row/column filters.
type Filter struct {
	Country    string `json:"country" yaml:"country"`
	DropColumn string `json:"drop_column" yaml:"drop_column"`
}

// Retry is applied uniformly to every task.
type Retry struct {
	// Retries is the number of additional attempts after the first one.
	// Zero selects the default; a negative value disables retries.
	Retries int `json:"retries" yaml:"retries"`

	// Delay is the fixed wait between attempts. Nil selects the default; an
	// explicit 0 retries immediately.
	Delay *Duration `json:"delay" yaml:"delay"`

	// RetrySchemaErrors keeps retrying missing-input and schema failures like
	// any other error. Nil means true.
	RetrySchemaErrors *bool `json:"retry_schema_errors" yaml:"retry_schema_errors"`
}

// DelayDuration returns the effective wait between attempts.
func (r Retry) DelayDuration() time.Duration {
	if r.Delay == nil {
		return 0
	}
	return r.Delay.D()
}

// RetriesSchemaErrors reports the effective value of RetrySchemaErrors.
func (r Retry) RetriesSchemaErrors() bool {
	return r.RetrySchemaErrors == nil || *r.RetrySchemaErrors
}

// Runtime controls executor concurrency.
type Runtime struct {
	MaxParallel int `json:"max_parallel" yaml:"max_parallel"`
}

// Storage optionally selects a database the aggregate is loaded into. An
// empty Kind disables the load.
type Storage struct {
	Kind string   `json:"kind" yaml:"kind"`
	DB   DBConfig `json:"db" yaml:"db"`
}

// DBConfig configures the DB sink.
type DBConfig struct {
	// DSN is the driver-specific connection string.
	DSN string `json:"dsn" yaml:"dsn"`

	// Table is the destination table (optionally schema-qualified).
	Table string `json:"table" yaml:"table"`

	// AutoCreateTable creates the destination table when it does not exist.
	AutoCreateTable bool `json:"auto_create_table" yaml:"auto_create_table"`

	// BatchSize bounds rows per CopyFrom call.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	// Backend is "pushgateway", "datadog" or "none".
	Backend string `json:"backend" yaml:"backend"`

	// URL is the Pushgateway base URL.
	URL string `json:"url" yaml:"url"`

	// Addr is the DogStatsD address.
	Addr string `json:"addr" yaml:"addr"`
}

// Notify configures the end-of-run notification.
type Notify struct {
	AMQP AMQP `json:"amqp" yaml:"amqp"`
}

// AMQP publishes the run summary to an exchange when URL is set.
type AMQP struct {
	URL        string `json:"url" yaml:"url"`
	Exchange   string `json:"exchange" yaml:"exchange"`
	RoutingKey string `json:"routing_key" yaml:"routing_key"`
}

// Duration is a time.Duration that decodes from a Go duration string
// ("2m", "30s") or from a number of seconds.
type Duration time.Duration

// NewDuration returns a pointer to d as a Duration.
func NewDuration(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

// MarshalJSON writes the duration as a Go duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts "2m" style strings or plain seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	return d.set(raw)
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	switch n.Tag {
	case "!!null":
		return d.set(nil)
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return err
		}
		return d.set(f)
	default:
		return d.set(n.Value)
	}
}

func (d *Duration) set(raw any) error {
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
	case string:
		if v == "" {
			*d = 0
			return nil
		}
		pd, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(pd)
	default:
		return fmt.Errorf("invalid duration %v", raw)
	}
	return nil
}

// Defaults returns p with every zero-valued field replaced by its default.
// Directory overrides from the environment (SALESETL_INPUT_DIR,
// SALESETL_INTERMEDIATE_DIR, SALESETL_RESULTS_DIR) win over the file.
func Defaults(p Pipeline) Pipeline {
	p.Job = pickString(p.Job, DefaultJob)

	p.Dirs.Input = pickString(os.Getenv("SALESETL_INPUT_DIR"), pickString(p.Dirs.Input, DefaultInputDir))
	p.Dirs.Intermediate = pickString(os.Getenv("SALESETL_INTERMEDIATE_DIR"),
		pickString(p.Dirs.Intermediate, filepath.Join(p.Dirs.Input, "intermediate_data")))
	p.Dirs.Results = pickString(os.Getenv("SALESETL_RESULTS_DIR"),
		pickString(p.Dirs.Results, filepath.Join(p.Dirs.Input, "results")))

	p.Filter.Country = pickString(p.Filter.Country, DefaultCountry)
	p.Filter.DropColumn = pickString(p.Filter.DropColumn, DefaultDropColumn)

	switch {
	case p.Retry.Retries == 0:
		p.Retry.Retries = DefaultRetries
	case p.Retry.Retries < 0:
		p.Retry.Retries = 0
	}
	if p.Retry.Delay == nil {
		p.Retry.Delay = NewDuration(DefaultRetryDelay)
	}
	if p.Runtime.MaxParallel == 0 {
		p.Runtime.MaxParallel = DefaultMaxParallel
	}
	p.Schedule = pickString(p.Schedule, DefaultSchedule)

	if p.Storage.Kind != "" {
		p.Storage.DB.Table = pickString(p.Storage.DB.Table, DefaultTable)
		if p.Storage.DB.BatchSize == 0 {
			p.Storage.DB.BatchSize = 1000
		}
	}
	return p
}

func pickString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

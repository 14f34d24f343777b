package config

import "testing"

func hasIssue(issues []Issue, sev IssueSeverity, path string) bool {
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path {
			return true
		}
	}
	return false
}

func validPipeline() Pipeline {
	no := false
	p := Pipeline{
		Dirs:  Dirs{Input: "/in", Intermediate: "/in/work", Results: "/in/out"},
		Retry: Retry{RetrySchemaErrors: &no},
	}
	p.Job = DefaultJob
	p.Filter = Filter{Country: DefaultCountry, DropColumn: DefaultDropColumn}
	p.Retry.Retries = 1
	p.Schedule = DefaultSchedule
	return p
}

func TestValidatePipeline(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(p *Pipeline)
		sev    IssueSeverity
		path   string
	}{
		{"empty job", func(p *Pipeline) { p.Job = " " }, SeverityError, "job"},
		{"empty input", func(p *Pipeline) { p.Dirs.Input = "" }, SeverityError, "dirs.input"},
		{"intermediate equals input", func(p *Pipeline) { p.Dirs.Intermediate = "/in" }, SeverityError, "dirs.intermediate"},
		{"results equals intermediate", func(p *Pipeline) { p.Dirs.Results = "/in/work" }, SeverityError, "dirs.results"},
		{"empty country", func(p *Pipeline) { p.Filter.Country = "" }, SeverityError, "filter.country"},
		{"padded country", func(p *Pipeline) { p.Filter.Country = "United States " }, SeverityWarning, "filter.country"},
		{"uniform retry warns", func(p *Pipeline) { p.Retry.RetrySchemaErrors = nil }, SeverityWarning, "retry.retry_schema_errors"},
		{"bad cron", func(p *Pipeline) { p.Schedule = "every day" }, SeverityError, "schedule"},
		{"storage without dsn", func(p *Pipeline) { p.Storage = Storage{Kind: "postgres", DB: DBConfig{Table: "t"}} }, SeverityError, "storage.db.dsn"},
		{"unknown storage", func(p *Pipeline) { p.Storage = Storage{Kind: "oracle", DB: DBConfig{DSN: "x", Table: "t"}} }, SeverityWarning, "storage.kind"},
		{"datadog without addr", func(p *Pipeline) { p.Metrics.Backend = "datadog" }, SeverityError, "metrics.addr"},
		{"amqp without target", func(p *Pipeline) { p.Notify.AMQP.URL = "amqp://localhost" }, SeverityError, "notify.amqp"},
		{"negative parallelism", func(p *Pipeline) { p.Runtime.MaxParallel = -1 }, SeverityError, "runtime.max_parallel"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := validPipeline()
			tt.mutate(&p)
			issues := ValidatePipeline(p)
			if !hasIssue(issues, tt.sev, tt.path) {
				t.Fatalf("ValidatePipeline() = %v; want %s at %s", issues, tt.sev, tt.path)
			}
		})
	}
}

func TestValidatePipelineClean(t *testing.T) {
	t.Parallel()

	p := validPipeline()
	p.Schedule = "0 22 * * *"
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("ValidatePipeline() = %v; want no issues", issues)
	}
	if HasErrors(nil) {
		t.Fatal("HasErrors(nil) = true")
	}
}

func TestShippedConfigsValidate(t *testing.T) {
	for _, name := range []string{"pipeline.json", "pipeline.postgres.yaml"} {
		p, err := Load("../../configs/" + name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if issues := ValidatePipeline(p); HasErrors(issues) {
			t.Errorf("%s: %v", name, issues)
		}
	}
}

package main

import (
	"testing"

	"salesetl/internal/config"
)

func TestPickBackend(t *testing.T) {
	t.Setenv("METRICS_BACKEND", "pushgateway")

	tests := []struct {
		name string
		flag string
		cfg  string
		want string
	}{
		{"flag_wins", "datadog", "none", "datadog"},
		{"config_over_env", "", "none", "none"},
		{"env_fallback", "", "", "pushgateway"},
	}
	for _, tt := range tests {
		p := config.Pipeline{Metrics: config.Metrics{Backend: tt.cfg}}
		if got := pickBackend(tt.flag, p); got != tt.want {
			t.Errorf("%s: pickBackend = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPickPushURL(t *testing.T) {
	t.Setenv("PUSHGATEWAY_URL", "")

	if got := pickPushURL("", config.Pipeline{}); got != defaultPushgatewayURL {
		t.Fatalf("default = %q", got)
	}
	p := config.Pipeline{Metrics: config.Metrics{URL: "http://gw:9091"}}
	if got := pickPushURL("", p); got != "http://gw:9091" {
		t.Fatalf("config = %q", got)
	}
	if got := pickPushURL("http://flag:9091", p); got != "http://flag:9091" {
		t.Fatalf("flag = %q", got)
	}

	t.Setenv("PUSHGATEWAY_URL", "http://env:9091")
	if got := pickPushURL("", config.Pipeline{}); got != "http://env:9091" {
		t.Fatalf("env = %q", got)
	}
}

func TestSetupMetricsDisabled(t *testing.T) {
	flush := setupMetrics(config.Pipeline{Job: "x"}, "none", "", false)
	flush()
	flush()
}

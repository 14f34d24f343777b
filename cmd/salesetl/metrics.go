package main

import (
	"log"
	"os"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"
)

const defaultPushgatewayURL = "http://localhost:9091"

// pickBackend decides the metrics backend: flag, then config, then env.
func pickBackend(flagVal string, p config.Pipeline) string {
	switch {
	case flagVal != "":
		return flagVal
	case p.Metrics.Backend != "":
		return p.Metrics.Backend
	default:
		return os.Getenv("METRICS_BACKEND")
	}
}

// pickPushURL decides the Pushgateway URL: flag, then config, then env,
// then the local default.
func pickPushURL(flagVal string, p config.Pipeline) string {
	for _, v := range []string{flagVal, p.Metrics.URL, os.Getenv("PUSHGATEWAY_URL")} {
		if v != "" {
			return v
		}
	}
	return defaultPushgatewayURL
}

// setupMetrics installs the selected backend and returns a flush func that is
// safe to call more than once. Backend failures degrade to the nop backend.
func setupMetrics(p config.Pipeline, backendFlag, pushURLFlag string, verbose bool) func() {
	backendName := pickBackend(backendFlag, p)
	var b metrics.Backend

	switch backendName {
	case "pushgateway":
		gwURL := pickPushURL(pushURLFlag, p)
		pb, err := prompush.NewBackend(p.Job, gwURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", gwURL, backendName, p.Job)
		b = pb

	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       p.Metrics.Addr,
			Namespace:  "salesetl.",
			GlobalTags: []string{"job:" + p.Job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: addr=%v, backend=%v", p.Metrics.Addr, backendName)
		b = db

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}

	if b == nil {
		return func() {}
	}
	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

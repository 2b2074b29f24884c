// Package metrics records per-run counters and writes them in the Prometheus
// text format for the node exporter textfile collector.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oss_contributions"

// Recorder owns a private registry with the run's counters. A nil Recorder is a no-op.
type Recorder struct {
	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	attempts     prometheus.Counter
	windows      prometheus.Counter
	entries      prometheus.Counter
	users        prometheus.Gauge
	repositories prometheus.Gauge
	lastRun      prometheus.Gauge
}

// NewRecorder creates a Recorder with all collectors registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "github_requests_total",
			Help:      "GitHub API requests by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "github_request_attempts_total",
			Help:      "GitHub API request attempts including retries.",
		}),
		windows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "windows_total",
			Help:      "Contribution windows queried.",
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_entries_total",
			Help:      "Repository entries returned across all contribution windows.",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users",
			Help:      "Users in the last report.",
		}),
		repositories: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repositories",
			Help:      "Repositories in the last report.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last report was completed.",
		}),
	}
	r.registry.MustRegister(r.requests, r.attempts, r.windows, r.entries, r.users, r.repositories, r.lastRun)
	return r
}

// ObserveRequest counts one completed GitHub request.
func (r *Recorder) ObserveRequest(outcome string, attempts int) {
	if r == nil {
		return
	}
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	r.requests.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		r.attempts.Add(float64(attempts))
	}
}

// ObserveWindow counts one contribution window and the entries it returned.
func (r *Recorder) ObserveWindow(entries int) {
	if r == nil {
		return
	}
	r.windows.Inc()
	if entries > 0 {
		r.entries.Add(float64(entries))
	}
}

// ObserveReport records the size of a finished report.
func (r *Recorder) ObserveReport(repositories, users int, completedUnix float64) {
	if r == nil {
		return
	}
	r.repositories.Set(float64(repositories))
	r.users.Set(float64(users))
	r.lastRun.Set(completedUnix)
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.registry
}

// WriteTextfile writes all metrics to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("metrics textfile path is required")
	}
	if err := prometheus.WriteToTextfile(path, r.Gatherer()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

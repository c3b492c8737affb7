// Package metrics exposes the agent's Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector is the process-wide registry.
var Collector = NewRegistry()

// Registry is a Prometheus registry that also knows when the process started.
type Registry struct {
	*prometheus.Registry
	startTime time.Time
}

// NewRegistry returns a registry carrying the Go runtime, process and
// uptime collectors.
func NewRegistry() *Registry {
	r := &Registry{Registry: prometheus.NewRegistry(), startTime: time.Now()}
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "vargasjr_uptime_seconds",
			Help: "Time since start in seconds",
		}, func() float64 { return r.Uptime().Seconds() }),
	)
	return r
}

func (r *Registry) Uptime() time.Duration { return time.Since(r.startTime) }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

var latencyBounds = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60}

var factory = promauto.With(Collector.Registry)

var (
	RunsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "vargasjr_runs_total", Help: "Router runs",
	})
	NoMessageRuns = factory.NewCounter(prometheus.CounterOpts{
		Name: "vargasjr_runs_no_message_total", Help: "Router runs that found nothing to process",
	})
	RunPanics = factory.NewCounter(prometheus.CounterOpts{
		Name: "vargasjr_run_panics_total", Help: "Router runs that panicked and were recovered",
	})
	ClassifyRetry = factory.NewCounter(prometheus.CounterOpts{
		Name: "vargasjr_classifier_retries_total", Help: "Classifications retried after a malformed selection",
	})
	OutboxSaved = factory.NewCounter(prometheus.CounterOpts{
		Name: "vargasjr_outbox_messages_total", Help: "Outbound messages recorded",
	})
	LastRunUnix = factory.NewGauge(prometheus.GaugeOpts{
		Name: "vargasjr_last_run_timestamp_seconds", Help: "Unix time of the last completed run",
	})
	ClassifyLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Name: "vargasjr_classifier_latency_seconds", Help: "Classifier latency in seconds", Buckets: latencyBounds,
	})

	actionTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "vargasjr_actions_total", Help: "Actions dispatched",
	}, []string{"action"})
	actionFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "vargasjr_action_failures_total", Help: "Actions that ended in a failure summary",
	}, []string{"action"})
	actionLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name: "vargasjr_action_latency_seconds", Help: "Action handler latency in seconds", Buckets: latencyBounds,
	}, []string{"action"})
	manualOperations = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "vargasjr_manual_operations_total", Help: "Manual operations applied",
	}, []string{"operation"})
)

// ActionTotal counts dispatches of one action.
func ActionTotal(action string) prometheus.Counter { return actionTotal.WithLabelValues(action) }

// ActionFailures counts dispatches of one action that ended in failure.
func ActionFailures(action string) prometheus.Counter { return actionFailures.WithLabelValues(action) }

// ActionLatency observes handler latency for one action.
func ActionLatency(action string) prometheus.Observer { return actionLatency.WithLabelValues(action) }

// ManualOperations counts manual UNREAD/ARCHIVED operations.
func ManualOperations(op string) prometheus.Counter { return manualOperations.WithLabelValues(op) }

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes
const (
	RunSucceeded = "success"
	RunFailed    = "failure"
	RunCancelled = "cancelled"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	Runs             *prometheus.CounterVec
	Candidates       prometheus.Counter
	ForwardSuccesses prometheus.Counter
	ForwardFailures  prometheus.Counter
	AlreadyForwarded prometheus.Counter
	ResolutionMisses prometheus.Counter
	ExtractionMisses prometheus.Counter
	RunDuration      prometheus.Histogram
	RunInProgress    prometheus.Gauge
}

// NewMetrics creates the forwarder metrics on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_runs_total",
			Help: "Total number of forwarding runs by outcome",
		}, []string{"outcome"}),
		Candidates: factory.NewCounter(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_candidates_total",
			Help: "Total number of messages matched by the mailbox search",
		}),
		ForwardSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_forward_successes_total",
			Help: "Total number of successful forwards",
		}),
		ForwardFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_forward_failures_total",
			Help: "Total number of messages recorded in the failure log",
		}),
		AlreadyForwarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_already_forwarded_total",
			Help: "Total number of messages skipped because their registration was already forwarded",
		}),
		ResolutionMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_resolution_misses_total",
			Help: "Total number of registrations not found in the recipient table",
		}),
		ExtractionMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "reg_mail_forwarder_extraction_misses_total",
			Help: "Total number of messages without a registration number",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "reg_mail_forwarder_run_duration_seconds",
			Help:    "Time spent in a forwarding run",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),
		RunInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Name: "reg_mail_forwarder_run_in_progress",
			Help: "1 while a forwarding run is active",
		}),
	}
}

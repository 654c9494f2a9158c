package light

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"

	prometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this
	// package.
	MetricsSubsystem = "light"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Latest trusted ledger version.
	TrustedVersion metrics.Gauge
	// Epoch of the trusted validator set.
	TrustedEpoch metrics.Gauge

	// Number of times the trusted state moved forward.
	Ratchets metrics.Counter
	// Number of state proofs requested by Sync.
	SyncSteps metrics.Counter

	// Number of verified requests, by method.
	Requests metrics.Counter
	// Number of requests that failed, by method.
	RequestErrors metrics.Counter
	// Number of state proofs that did not verify.
	InvalidStateProofs metrics.Counter

	// Time between sending a batch and having verified its responses.
	BatchDurationSeconds metrics.Histogram
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		TrustedVersion: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "trusted_version",
			Help:      "Latest trusted ledger version.",
		}, labels).With(labelsAndValues...),
		TrustedEpoch: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "trusted_epoch",
			Help:      "Epoch of the trusted validator set.",
		}, labels).With(labelsAndValues...),
		Ratchets: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "ratchets_total",
			Help:      "Number of times the trusted state moved forward.",
		}, labels).With(labelsAndValues...),
		SyncSteps: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "sync_steps_total",
			Help:      "Number of state proofs requested while syncing.",
		}, labels).With(labelsAndValues...),
		Requests: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requests_total",
			Help:      "Number of verified requests.",
		}, append(labels, "method")).With(labelsAndValues...),
		RequestErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "request_errors_total",
			Help:      "Number of requests that failed.",
		}, append(labels, "method")).With(labelsAndValues...),
		InvalidStateProofs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "invalid_state_proofs_total",
			Help:      "Number of state proofs that did not verify.",
		}, labels).With(labelsAndValues...),
		BatchDurationSeconds: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "batch_duration_seconds",
			Help:      "Time between sending a batch and having verified its responses.",
			Buckets:   stdprometheus.ExponentialBuckets(0.005, 2, 12),
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		TrustedVersion:       discard.NewGauge(),
		TrustedEpoch:         discard.NewGauge(),
		Ratchets:             discard.NewCounter(),
		SyncSteps:            discard.NewCounter(),
		Requests:             discard.NewCounter(),
		RequestErrors:        discard.NewCounter(),
		InvalidStateProofs:   discard.NewCounter(),
		BatchDurationSeconds: discard.NewHistogram(),
	}
}

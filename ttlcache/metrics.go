/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package ttlcache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/acronis/go-ttlcache/internal/libinfo"
)

// MetricsCollector represents a collector of metrics to analyze how (effectively or not) cache is used.
type MetricsCollector interface {
	// SetAmount sets the total number of entries in the cache.
	SetAmount(int)

	// IncHits increments the total number of successfully found keys in the cache.
	IncHits()

	// IncMisses increments the total number of not found keys in the cache.
	IncMisses()

	// AddExpirations increments the total number of entries removed because their TTL elapsed.
	AddExpirations(int)

	// ObserveSweep registers a finished run of the background sweeper.
	ObserveSweep(elapsed time.Duration, err error)
}

const (
	sweepResultLabel = "result"
	sweepResultOK    = "ok"
	sweepResultError = "error"
)

// DefaultSweepDurationBuckets is the default set of buckets for the sweep duration histogram.
var DefaultSweepDurationBuckets = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// PrometheusMetricsOpts represents options for PrometheusMetrics.
type PrometheusMetricsOpts struct {
	// Namespace is a namespace for metrics. It will be prepended to all metric names.
	Namespace string

	// ConstLabels is a set of labels that will be applied to all metrics.
	// The "go_ttlcache_version" label with the library version is always added.
	ConstLabels prometheus.Labels

	// CurriedLabelNames is a list of label names that will be curried with the provided labels.
	// See PrometheusMetrics.MustCurryWith method for more details.
	// Keep in mind that if this list is not empty,
	// PrometheusMetrics.MustCurryWith method must be called further with the same labels.
	// Otherwise, the collector will panic.
	CurriedLabelNames []string

	// SweepDurationBuckets is used for the sweep duration histogram. DefaultSweepDurationBuckets if empty.
	SweepDurationBuckets []float64
}

// PrometheusMetrics represents a Prometheus metrics for the cache.
type PrometheusMetrics struct {
	EntriesAmount     *prometheus.GaugeVec
	HitsTotal         *prometheus.CounterVec
	MissesTotal       *prometheus.CounterVec
	ExpirationsTotal  *prometheus.CounterVec
	SweepsTotal       *prometheus.CounterVec
	SweepDurationSecs *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a new instance of PrometheusMetrics with default options.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithOpts(PrometheusMetricsOpts{})
}

// NewPrometheusMetricsWithOpts creates a new instance of PrometheusMetrics with the provided options.
func NewPrometheusMetricsWithOpts(opts PrometheusMetricsOpts) *PrometheusMetrics {
	opts.ConstLabels = libinfo.AddPrometheusLibVersionLabel(opts.ConstLabels)

	entriesAmount := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_entries_amount",
			Help:        "Total number of entries in the cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	hitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_hits_total",
			Help:        "Number of successfully found keys in the cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	missesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_misses_total",
			Help:        "Number of not found keys in cache.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	expirationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_expirations_total",
			Help:        "Number of entries removed from the cache because their TTL elapsed.",
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	sweepLabelNames := make([]string, 0, len(opts.CurriedLabelNames)+1)
	sweepLabelNames = append(sweepLabelNames, opts.CurriedLabelNames...)
	sweepLabelNames = append(sweepLabelNames, sweepResultLabel)
	sweepsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_sweeps_total",
			Help:        "Number of background sweeps of expired entries.",
			ConstLabels: opts.ConstLabels,
		},
		sweepLabelNames,
	)

	buckets := opts.SweepDurationBuckets
	if len(buckets) == 0 {
		buckets = DefaultSweepDurationBuckets
	}
	sweepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   opts.Namespace,
			Name:        "cache_sweep_duration_seconds",
			Help:        "Duration of background sweeps of expired entries.",
			Buckets:     buckets,
			ConstLabels: opts.ConstLabels,
		},
		opts.CurriedLabelNames,
	)

	return &PrometheusMetrics{
		EntriesAmount:     entriesAmount,
		HitsTotal:         hitsTotal,
		MissesTotal:       missesTotal,
		ExpirationsTotal:  expirationsTotal,
		SweepsTotal:       sweepsTotal,
		SweepDurationSecs: sweepDuration,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		EntriesAmount:     pm.EntriesAmount.MustCurryWith(labels),
		HitsTotal:         pm.HitsTotal.MustCurryWith(labels),
		MissesTotal:       pm.MissesTotal.MustCurryWith(labels),
		ExpirationsTotal:  pm.ExpirationsTotal.MustCurryWith(labels),
		SweepsTotal:       pm.SweepsTotal.MustCurryWith(labels),
		SweepDurationSecs: pm.SweepDurationSecs.MustCurryWith(labels).(*prometheus.HistogramVec),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.EntriesAmount,
		pm.HitsTotal,
		pm.MissesTotal,
		pm.ExpirationsTotal,
		pm.SweepsTotal,
		pm.SweepDurationSecs,
	)
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.EntriesAmount)
	prometheus.Unregister(pm.HitsTotal)
	prometheus.Unregister(pm.MissesTotal)
	prometheus.Unregister(pm.ExpirationsTotal)
	prometheus.Unregister(pm.SweepsTotal)
	prometheus.Unregister(pm.SweepDurationSecs)
}

// MustRegisterMetrics implements service.MetricsRegisterer interface.
func (pm *PrometheusMetrics) MustRegisterMetrics() {
	pm.MustRegister()
}

// UnregisterMetrics implements service.MetricsRegisterer interface.
func (pm *PrometheusMetrics) UnregisterMetrics() {
	pm.Unregister()
}

// SetAmount sets the total number of entries in the cache.
func (pm *PrometheusMetrics) SetAmount(amount int) {
	pm.EntriesAmount.With(nil).Set(float64(amount))
}

// IncHits increments the total number of successfully found keys in the cache.
func (pm *PrometheusMetrics) IncHits() {
	pm.HitsTotal.With(nil).Inc()
}

// IncMisses increments the total number of not found keys in the cache.
func (pm *PrometheusMetrics) IncMisses() {
	pm.MissesTotal.With(nil).Inc()
}

// AddExpirations increments the total number of expired entries.
func (pm *PrometheusMetrics) AddExpirations(n int) {
	pm.ExpirationsTotal.With(nil).Add(float64(n))
}

// ObserveSweep registers a finished sweep and its duration.
func (pm *PrometheusMetrics) ObserveSweep(elapsed time.Duration, err error) {
	result := sweepResultOK
	if err != nil {
		result = sweepResultError
	}
	pm.SweepsTotal.With(prometheus.Labels{sweepResultLabel: result}).Inc()
	pm.SweepDurationSecs.With(nil).Observe(elapsed.Seconds())
}

type disabledMetrics struct{}

func (disabledMetrics) SetAmount(int)                     {}
func (disabledMetrics) IncHits()                          {}
func (disabledMetrics) IncMisses()                        {}
func (disabledMetrics) AddExpirations(int)                {}
func (disabledMetrics) ObserveSweep(time.Duration, error) {}

var disabledMetricsCollector = disabledMetrics{}

// Package metrics exposes Prometheus instrumentation for extraction runs.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "engagement"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeFound   = "found"
	OutcomeMissing = "missing"
)

// Metrics holds the collectors registered by New.
type Metrics struct {
	RecordsTotal          *prometheus.CounterVec
	FieldExtractionsTotal *prometheus.CounterVec
	PageLoadRetriesTotal  *prometheus.CounterVec
	RecordDuration        *prometheus.HistogramVec
	ReconcileConfidence   *prometheus.HistogramVec
	VisionCallsTotal      *prometheus.CounterVec
	BatchSize             prometheus.Histogram
}

// New creates and registers all collectors on reg, or on the default
// registerer when reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_total",
			Help:      "Metadata records produced, by platform and outcome.",
		}, []string{"platform", "outcome"}),

		FieldExtractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "field_extractions_total",
			Help:      "Field extraction attempts, by platform, field, winning tier and outcome.",
		}, []string{"platform", "field", "tier", "outcome"}),

		PageLoadRetriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "page_load_retries_total",
			Help:      "Page load retries, by platform.",
		}, []string{"platform"}),

		RecordDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "record_duration_seconds",
			Help:      "Time to produce one record, by platform.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}, []string{"platform"}),

		ReconcileConfidence: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reconcile_confidence",
			Help:      "Reconciled confidence score, by metric.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"metric"}),

		VisionCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "vision_calls_total",
			Help:      "Vision model calls, by model and outcome.",
		}, []string{"model", "outcome"}),

		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_size",
			Help:      "Number of URLs per batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

// ObserveRecord counts one finished record.
func (m *Metrics) ObserveRecord(platform string, failed bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	if platform == "" {
		platform = "unknown"
	}
	m.RecordsTotal.WithLabelValues(platform, outcome(!failed, OutcomeSuccess, OutcomeFailure)).Inc()
	m.RecordDuration.WithLabelValues(platform).Observe(elapsed.Seconds())
}

// ObserveField counts one field extraction. tier is empty when nothing was
// found.
func (m *Metrics) ObserveField(platform, field, tier string, found bool) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "none"
	}
	m.FieldExtractionsTotal.WithLabelValues(platform, field, tier, outcome(found, OutcomeFound, OutcomeMissing)).Inc()
}

// ObservePageLoadRetry counts one page load retry.
func (m *Metrics) ObservePageLoadRetry(platform string) {
	if m == nil {
		return
	}
	m.PageLoadRetriesTotal.WithLabelValues(platform).Inc()
}

// ObserveConfidence records a reconciled confidence score.
func (m *Metrics) ObserveConfidence(metric string, score float64) {
	if m == nil {
		return
	}
	m.ReconcileConfidence.WithLabelValues(metric).Observe(score)
}

// ObserveVisionCall counts one vision model call.
func (m *Metrics) ObserveVisionCall(model string, err error) {
	if m == nil {
		return
	}
	m.VisionCallsTotal.WithLabelValues(model, outcome(err == nil, OutcomeSuccess, OutcomeFailure)).Inc()
}

// ObserveBatch records the size of a batch.
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

func outcome(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRecord("youtube", false, time.Second)
		m.ObserveField("youtube", "views", "selector", true)
		m.ObservePageLoadRetry("tiktok")
		m.ObserveConfidence("views", 0.9)
		m.ObserveVisionCall("anthropic", nil)
		m.ObserveBatch(3)
	})
}

func TestObserveRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRecord("youtube", false, time.Second)
	m.ObserveRecord("youtube", true, time.Second)
	m.ObserveRecord("", true, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("youtube", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("youtube", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsTotal.WithLabelValues("unknown", OutcomeFailure)))
}

func TestObserveField(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveField("tiktok", "views", "text", true)
	m.ObserveField("tiktok", "shares", "", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldExtractionsTotal.WithLabelValues("tiktok", "views", "text", OutcomeFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldExtractionsTotal.WithLabelValues("tiktok", "shares", "none", OutcomeMissing)))
}

func TestObserveVisionCall(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveVisionCall("ollama", nil)
	m.ObserveVisionCall("ollama", errors.New("boom"))
	m.ObserveVisionCall("ollama", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.VisionCallsTotal.WithLabelValues("ollama", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.VisionCallsTotal.WithLabelValues("ollama", OutcomeFailure)))
}

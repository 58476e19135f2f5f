// Package vision reads engagement counters from page screenshots with a
// vision model and reconciles them with the scraped record.
package vision

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/metrics"
	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/reconcile"
	"github.com/sells-group/engagement-cli/internal/resilience"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 90 * time.Second

// Analyzer runs a Model over screenshots. It is safe for sequential reuse
// across records and owns no browser state.
type Analyzer struct {
	model   Model
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds each model call.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithCircuitBreaker replaces the default circuit breaker.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(a *Analyzer) { a.breaker = cb }
}

// WithMetrics records model calls and reconciliation confidence.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithClock overrides the analysis timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// NewAnalyzer creates an Analyzer for m.
func NewAnalyzer(m Model, opts ...Option) *Analyzer {
	a := &Analyzer{
		model:   m,
		timeout: DefaultTimeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.breaker == nil {
		a.breaker = resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig())
	}
	return a
}

// Read sends the screenshot to the model and parses its answer.
func (a *Analyzer) Read(ctx context.Context, platform model.Platform, screenshot []byte) (Reading, error) {
	text, err := resilience.ExecuteVal(ctx, a.breaker, func(ctx context.Context) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()
		return a.model.Analyze(ctx, screenshot, Prompt(platform))
	})
	a.metrics.ObserveVisionCall(a.model.Name(), err)
	if err != nil {
		return Reading{}, err
	}
	return Parse(text)
}

// Analyze reconciles rec with a model reading of screenshot. It never
// fails: a missing screenshot or an unusable answer yields a scraped-only
// analysis whose ErrorMessage carries a ReconciliationDegradedError. rec is
// not modified.
func (a *Analyzer) Analyze(ctx context.Context, rec *model.MetadataRecord, screenshot []byte) model.Analysis {
	out := model.Analysis{
		ScreenshotTaken:  len(screenshot) > 0,
		PlatformDetected: rec.Platform,
		Timestamp:        a.now().UTC(),
	}
	log := zap.L().With(zap.String("url", rec.URL), zap.String("platform", string(rec.Platform)))

	if !out.ScreenshotTaken {
		return a.degrade(out, rec, model.NewError(model.KindReconciliationDegraded, "no screenshot available"))
	}

	reading, err := a.Read(ctx, rec.Platform, screenshot)
	if err != nil {
		log.Warn("vision: analysis failed", zap.Error(err))
		return a.degrade(out, rec, model.WrapError(err, model.KindReconciliationDegraded, "vision reading unavailable"))
	}
	if reading.Fallback {
		log.Debug("vision: answer was not JSON, used pattern fallback")
	}

	out.AnalysisSuccessful = true
	out.Metrics = reconcile.Record(rec, reading.Observations)
	if p := model.Platform(normalizePlatform(reading.PlatformConfirmed)); p.Valid() {
		out.PlatformDetected = p
	}
	a.finish(&out)
	log.Info("vision: analysis complete",
		zap.Float64("overall_confidence", out.OverallConfidence),
		zap.String("level", out.ConfidenceLevel),
	)
	return out
}

func (a *Analyzer) degrade(out model.Analysis, rec *model.MetadataRecord, err *model.Error) model.Analysis {
	out.Metrics = reconcile.ScrapedOnly(rec)
	out.ErrorMessage = err.Error()
	a.finish(&out)
	return out
}

func (a *Analyzer) finish(out *model.Analysis) {
	out.OverallConfidence = reconcile.Overall(out.Metrics)
	out.ConfidenceLevel = reconcile.Level(out.OverallConfidence)
	for _, m := range out.Metrics {
		a.metrics.ObserveConfidence(string(m.Metric), m.ConfidenceScore)
	}
}

// normalizePlatform maps a model's free-text platform name ("YouTube",
// " TIKTOK ") onto the platform enum spelling.
func normalizePlatform(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

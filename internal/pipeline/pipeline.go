// Package pipeline runs the per-URL extraction flow (classify, load,
// extract, optionally analyze) and sequential batches over it.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/engagement-cli/internal/classify"
	"github.com/sells-group/engagement-cli/internal/dom"
	"github.com/sells-group/engagement-cli/internal/extract"
	"github.com/sells-group/engagement-cli/internal/metrics"
	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/vision"
)

// DefaultRequestDelay paces consecutive URLs of a batch.
const DefaultRequestDelay = 2 * time.Second

// Result is the outcome for one URL. Analysis is nil unless a vision
// analyzer is configured and the page loaded.
type Result struct {
	Record   model.MetadataRecord `json:"record"`
	Analysis *model.Analysis      `json:"analysis,omitempty"`
	Duration time.Duration        `json:"duration_ns"`
}

// Pipeline owns the service handles a run needs. Handles are constructed
// and torn down by the caller.
type Pipeline struct {
	provider     dom.Provider
	extractor    *extract.Extractor
	analyzer     *vision.Analyzer
	metrics      *metrics.Metrics
	requestDelay time.Duration
	now          func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithAnalyzer enables screenshot analysis and reconciliation.
func WithAnalyzer(a *vision.Analyzer) Option {
	return func(p *Pipeline) { p.analyzer = a }
}

// WithMetrics records per-record and per-batch metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRequestDelay sets the minimum spacing between batch URLs. Zero
// disables pacing.
func WithRequestDelay(d time.Duration) Option {
	return func(p *Pipeline) {
		if d >= 0 {
			p.requestDelay = d
		}
	}
}

// WithClock overrides the clock used for durations.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(provider dom.Provider, extractor *extract.Extractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:     provider,
		extractor:    extractor,
		requestDelay: DefaultRequestDelay,
		now:          time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes one URL. It never returns an error: request-level failures
// are carried on the record, next to any fields already filled.
func (p *Pipeline) Run(ctx context.Context, rawURL string) Result {
	start := p.now()
	res := p.run(ctx, rawURL)
	res.Duration = p.now().Sub(start)

	p.metrics.ObserveRecord(platformLabel(res.Record.Platform), res.Record.Failed(), res.Duration)
	log := zap.L().With(zap.String("url", rawURL), zap.Int64("duration_ms", res.Duration.Milliseconds()))
	if res.Record.Failed() {
		log.Warn("pipeline: record failed",
			zap.String("error_kind", string(res.Record.ErrorKind)),
			zap.String("error", res.Record.Error),
		)
	} else {
		log.Info("pipeline: record complete", zap.String("platform", string(res.Record.Platform)))
	}
	return res
}

func (p *Pipeline) run(ctx context.Context, rawURL string) Result {
	ref, err := classify.Classify(rawURL)
	if err != nil {
		rec := model.MetadataRecord{URL: rawURL}
		rec.SetError(err)
		return Result{Record: rec}
	}

	session, err := p.provider.Open(ctx)
	if err != nil {
		rec := model.MetadataRecord{Platform: ref.Platform, URL: ref.URL}
		rec.SetError(model.WrapError(err, model.KindBrowserSession, "could not open browser session"))
		return Result{Record: rec}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			zap.L().Warn("pipeline: close session", zap.String("url", ref.URL), zap.Error(cerr))
		}
	}()

	if err := p.extractor.Load(ctx, ref, session); err != nil {
		rec := model.MetadataRecord{Platform: ref.Platform, URL: ref.URL}
		rec.SetError(err)
		return Result{Record: rec}
	}

	res := Result{Record: p.extractor.Extract(ctx, ref, session)}
	if err := ctx.Err(); err != nil {
		res.Record.SetError(model.WrapError(err, model.KindPageLoadTimeout, "extraction interrupted"))
		return res
	}

	if p.analyzer != nil {
		rec := res.Record.Clone()
		analysis := p.analyzer.Analyze(ctx, &rec, p.screenshot(ctx, ref, session))
		res.Analysis = &analysis
	}
	return res
}

// screenshot captures the viewport when the session supports it.
func (p *Pipeline) screenshot(ctx context.Context, ref model.ContentReference, s dom.Session) []byte {
	shooter, ok := s.(dom.Screenshotter)
	if !ok {
		return nil
	}
	shot, err := shooter.Screenshot(ctx)
	if err != nil {
		zap.L().Warn("pipeline: screenshot failed", zap.String("url", ref.URL), zap.Error(err))
		return nil
	}
	return shot
}

// Batch processes urls one at a time, in order, spaced by the request
// delay. The result has exactly one entry per input URL; a failure on one
// URL never affects the next. If ctx ends, the remaining URLs get an
// error record.
func (p *Pipeline) Batch(ctx context.Context, urls []string) []Result {
	p.metrics.ObserveBatch(len(urls))
	limiter := rate.NewLimiter(rate.Inf, 1)
	if p.requestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.requestDelay), 1)
	}

	results := make([]Result, len(urls))
	var failed int
	for i, u := range urls {
		if err := limiter.Wait(ctx); err != nil {
			rec := model.MetadataRecord{URL: u}
			rec.SetError(model.WrapError(err, model.KindPageLoadTimeout, "batch cancelled"))
			results[i] = Result{Record: rec}
			failed++
			continue
		}
		results[i] = p.Run(ctx, u)
		if results[i].Record.Failed() {
			failed++
		}
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int("total", len(urls)),
		zap.Int("succeeded", len(urls)-failed),
		zap.Int("failed", failed),
	)
	return results
}

func platformLabel(p model.Platform) string {
	if p == "" {
		return "unknown"
	}
	return string(p)
}

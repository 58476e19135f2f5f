// Package extract runs the per-field strategy chain against a page and turns
// the winning text into a typed metadata record.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/engagement-cli/internal/dom"
	"github.com/sells-group/engagement-cli/internal/metrics"
	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/normalize"
	"github.com/sells-group/engagement-cli/internal/resilience"
)

// DefaultElementWait bounds every readiness or strategy wait.
const DefaultElementWait = 10 * time.Second

// Option configures an Extractor.
type Option func(*Extractor)

// WithElementWait sets the per-wait cap.
func WithElementWait(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.elementWait = d
		}
	}
}

// WithPageLoadRetry sets the retry policy for navigation and readiness.
func WithPageLoadRetry(cfg resilience.RetryConfig) Option {
	return func(e *Extractor) { e.retry = cfg }
}

// WithMetrics records field and retry counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) { e.metrics = m }
}

// WithClock sets the reference time source for relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.now = now
		}
	}
}

// Extractor evaluates a strategy table against DOM accessors. It holds no
// per-page state and is safe for concurrent use.
type Extractor struct {
	table       *Table
	elementWait time.Duration
	retry       resilience.RetryConfig
	metrics     *metrics.Metrics
	now         func() time.Time
}

// New creates an Extractor over table.
func New(table *Table, opts ...Option) *Extractor {
	e := &Extractor{
		table:       table,
		elementWait: DefaultElementWait,
		retry:       resilience.FromPageLoadConfig(3, 3*time.Second),
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load navigates to ref and waits for the layout's readiness locators. A
// navigation failure or a missing required locator is retried per the
// page-load policy; exhausting it yields a PageLoadTimeoutError.
func (e *Extractor) Load(ctx context.Context, ref model.ContentReference, acc dom.Accessor) error {
	layout, ok := e.table.Layout(ref.Platform, ref.Variant)
	if !ok {
		return model.NewError(model.KindUnsupportedPlatform, "no strategies for %s", ref.Platform)
	}

	cfg := e.retry
	onRetry := resilience.RetryLogger("page", "load")
	cfg.OnRetry = func(attempt int, err error) {
		e.metrics.ObservePageLoadRetry(string(ref.Platform))
		onRetry(attempt, err)
	}

	attempts := 0
	err := resilience.Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		if err := acc.Navigate(ctx, ref.URL); err != nil {
			return err
		}
		return e.waitReady(ctx, ref, layout, acc)
	})
	if err != nil {
		return model.WrapError(err, model.KindPageLoadTimeout,
			fmt.Sprintf("page did not load after %d attempt(s)", attempts))
	}
	return nil
}

func (e *Extractor) waitReady(ctx context.Context, ref model.ContentReference, layout *Layout, acc dom.Accessor) error {
	for _, r := range layout.Ready {
		if acc.WaitFor(ctx, r.Locator, e.elementWait) {
			continue
		}
		if r.Required {
			return resilience.NewTransientError(
				eris.Errorf("extract: required element %q not found", r.Locator), 0)
		}
		zap.L().Debug("extract: optional readiness locator not found",
			zap.String("url", ref.URL),
			zap.String("locator", r.Locator),
		)
	}
	return nil
}

// ExtractField runs the strategy chain for one field. Tiers are tried in
// order and the first strategy that yields usable text wins. A field the
// platform marks absent is reported not found without touching the page.
func (e *Extractor) ExtractField(ctx context.Context, ref model.ContentReference, field model.Field, acc dom.Accessor) model.RawFieldReading {
	reading := model.RawFieldReading{Field: field}

	layout, ok := e.table.Layout(ref.Platform, ref.Variant)
	if !ok {
		return reading
	}
	fs := layout.Fields[field]
	if fs == nil || fs.Absent {
		return reading
	}

	p := &page{Accessor: acc}
	found := func(tier model.SourceTier, strategy, text string) bool {
		text = fs.cleanup(text)
		if !e.accept(field, tier, text) {
			return false
		}
		reading = model.RawFieldReading{Field: field, Tier: tier, Strategy: strategy, Text: text, Found: true}
		return true
	}

	for i := range fs.Selectors {
		s := &fs.Selectors[i]
		for _, text := range s.candidates(ctx, p, e.elementWait) {
			if found(model.TierSelector, s.CSS, text) {
				return reading
			}
		}
		if ctx.Err() != nil {
			return reading
		}
	}

	for i := range fs.Meta {
		m := &fs.Meta[i]
		if text, ok := m.lookup(ctx, p); ok && found(model.TierMeta, m.name(), text) {
			return reading
		}
	}

	for i := range fs.Text {
		ts := &fs.Text[i]
		for _, text := range ts.candidates(ctx, p) {
			if found(model.TierText, ts.Pattern, text) {
				return reading
			}
		}
	}

	return reading
}

// Extract fills a record for ref from acc, one field at a time. Missing
// fields stay absent; the record never carries an error from this step.
func (e *Extractor) Extract(ctx context.Context, ref model.ContentReference, acc dom.Accessor) model.MetadataRecord {
	rec := model.MetadataRecord{Platform: ref.Platform, URL: ref.URL}
	now := e.now()

	for _, f := range model.Fields {
		if ctx.Err() != nil {
			break
		}
		reading := e.ExtractField(ctx, ref, f, acc)
		e.metrics.ObserveField(string(ref.Platform), string(f), string(reading.Tier), reading.Found)
		if !reading.Found {
			zap.L().Debug("extract: field not found",
				zap.String("url", ref.URL),
				zap.String("field", string(f)),
				zap.Error(model.NewError(model.KindFieldNotFound, "%s: all strategies exhausted", f)),
			)
			continue
		}
		apply(&rec, reading, now)
	}
	return rec
}

func apply(rec *model.MetadataRecord, r model.RawFieldReading, now time.Time) {
	switch {
	case r.Field.IsCount():
		rec.SetCount(r.Field, normalize.NumberPtr(r.Text))
	case r.Field == model.FieldUploadDate:
		res, _ := normalize.ParseDate(r.Text, now)
		if !res.Canonical {
			zap.L().Debug("extract: keeping unparsed date",
				zap.String("url", rec.URL),
				zap.Error(model.NewError(model.KindNormalizationAmbiguous, "date %q", res.Value)),
			)
		}
		rec.UploadDate = res.Value
	case r.Field == model.FieldTitle:
		rec.Title = r.Text
	case r.Field == model.FieldAuthor:
		rec.Author = r.Text
	}
}

// accept decides whether text is usable for field. Counts must normalize;
// dates must parse, and text-tier dates must parse canonically since page
// source is full of year-shaped noise.
func (e *Extractor) accept(field model.Field, tier model.SourceTier, text string) bool {
	if text == "" {
		return false
	}
	switch {
	case field.IsCount():
		_, ok := normalize.Number(text)
		return ok
	case field == model.FieldUploadDate:
		res, ok := normalize.ParseDate(text, e.now())
		return ok && (tier != model.TierText || res.Canonical)
	}
	return true
}

func (fs *FieldStrategies) cleanup(text string) string {
	text = normalize.CleanText(text)
	if fs.StripPrefix != "" {
		text = strings.TrimSpace(strings.TrimPrefix(text, fs.StripPrefix))
	}
	if fs.MaxLength > 0 {
		text = normalize.Truncate(text, fs.MaxLength)
	}
	return text
}

func (m *MetaStrategy) name() string {
	if m.JSONLD != "" {
		return "jsonld:" + m.JSONLD
	}
	return m.CSS + "@" + m.Attr
}

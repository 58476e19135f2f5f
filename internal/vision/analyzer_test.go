package vision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/engagement-cli/internal/metrics"
	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/reconcile"
	"github.com/sells-group/engagement-cli/internal/resilience"
)

type mockModel struct {
	mock.Mock
}

func (m *mockModel) Name() string { return "test-model" }

func (m *mockModel) Analyze(ctx context.Context, image []byte, prompt string) (string, error) {
	args := m.Called(ctx, image, prompt)
	return args.String(0), args.Error(1)
}

var (
	fixedNow   = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	screenshot = []byte("\x89PNG\r\n\x1a\nfake")
)

func scrapedRecord() *model.MetadataRecord {
	return &model.MetadataRecord{
		Platform: model.PlatformYouTube,
		URL:      "https://www.youtube.com/watch?v=abc123",
		Views:    model.Int64(1000),
		Likes:    model.Int64(500),
	}
}

func newTestAnalyzer(m Model, opts ...Option) *Analyzer {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewAnalyzer(m, opts...)
}

func TestAnalyze_Success(t *testing.T) {
	mm := new(mockModel)
	mm.On("Analyze", mock.Anything, screenshot, Prompt(model.PlatformYouTube)).Return(`{
		"views": {"value": 1050, "confidence": 90},
		"likes": {"value": 5000, "confidence": 50},
		"shares": {"value": 10, "confidence": 80},
		"platform_confirmed": "YouTube"
	}`, nil)

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)
	rec := scrapedRecord()
	a := newTestAnalyzer(mm, WithMetrics(met))

	got := a.Analyze(context.Background(), rec, screenshot)
	mm.AssertExpectations(t)

	assert.True(t, got.ScreenshotTaken)
	assert.True(t, got.AnalysisSuccessful)
	assert.Empty(t, got.ErrorMessage)
	assert.Equal(t, model.PlatformYouTube, got.PlatformDetected)
	assert.Equal(t, fixedNow, got.Timestamp)
	require.Len(t, got.Metrics, 4)

	views, _ := got.Metric(model.FieldViews)
	assert.True(t, views.IsVerified)
	assert.InDelta(t, 0.95, views.ConfidenceScore, 1e-9)
	assert.Equal(t, int64(1050), *views.FinalValue)

	likes, _ := got.Metric(model.FieldLikes)
	assert.False(t, likes.IsVerified)
	assert.Equal(t, int64(500), *likes.FinalValue)

	comments, _ := got.Metric(model.FieldComments)
	assert.Nil(t, comments.FinalValue)
	assert.Equal(t, reconcile.NoteNoValues, comments.Notes)

	shares, _ := got.Metric(model.FieldShares)
	assert.InDelta(t, 0.56, shares.ConfidenceScore, 1e-9)
	assert.Equal(t, int64(10), *shares.FinalValue)

	assert.InDelta(t, (0.95+0.3+0+0.56)/4, got.OverallConfidence, 1e-9)
	assert.Equal(t, reconcile.LevelLow, got.ConfidenceLevel)

	// The scraped record is left untouched.
	assert.Equal(t, int64(1000), *rec.Views)
	assert.Nil(t, rec.Shares)

	assert.Equal(t, 1.0, testutil.ToFloat64(met.VisionCallsTotal.WithLabelValues("test-model", metrics.OutcomeSuccess)))
}

func TestAnalyze_ModelErrorDegrades(t *testing.T) {
	mm := new(mockModel)
	mm.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection refused"))

	got := newTestAnalyzer(mm).Analyze(context.Background(), scrapedRecord(), screenshot)

	assert.True(t, got.ScreenshotTaken)
	assert.False(t, got.AnalysisSuccessful)
	assert.Contains(t, got.ErrorMessage, string(model.KindReconciliationDegraded))
	assert.Contains(t, got.ErrorMessage, "connection refused")
	require.Len(t, got.Metrics, 4)
	views, _ := got.Metric(model.FieldViews)
	assert.Equal(t, reconcile.NoteScrapedOnly, views.Notes)
	assert.InDelta(t, 0.25, got.OverallConfidence, 1e-9)
	assert.Equal(t, reconcile.LevelVeryLow, got.ConfidenceLevel)
}

func TestAnalyze_UnparsableAnswerDegrades(t *testing.T) {
	mm := new(mockModel)
	mm.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("Sorry, I can't help with that.", nil)

	got := newTestAnalyzer(mm).Analyze(context.Background(), scrapedRecord(), screenshot)

	assert.False(t, got.AnalysisSuccessful)
	assert.Contains(t, got.ErrorMessage, string(model.KindReconciliationDegraded))
}

func TestAnalyze_NoScreenshot(t *testing.T) {
	mm := new(mockModel)

	got := newTestAnalyzer(mm).Analyze(context.Background(), scrapedRecord(), nil)

	mm.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, got.ScreenshotTaken)
	assert.False(t, got.AnalysisSuccessful)
	assert.Contains(t, got.ErrorMessage, "no screenshot")
	assert.Len(t, got.Metrics, 4)
}

func TestAnalyze_UnknownPlatformKeepsRecordPlatform(t *testing.T) {
	mm := new(mockModel)
	mm.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"views": {"value": 1000, "confidence": 95}, "platform_confirmed": "Instagram"}`, nil)

	got := newTestAnalyzer(mm).Analyze(context.Background(), scrapedRecord(), screenshot)

	assert.True(t, got.AnalysisSuccessful)
	assert.Equal(t, model.PlatformYouTube, got.PlatformDetected)
}

func TestAnalyze_CircuitOpensAfterFailures(t *testing.T) {
	mm := new(mockModel)
	mm.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("boom")).Once()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	a := newTestAnalyzer(mm, WithCircuitBreaker(cb))

	first := a.Analyze(context.Background(), scrapedRecord(), screenshot)
	second := a.Analyze(context.Background(), scrapedRecord(), screenshot)

	mm.AssertNumberOfCalls(t, "Analyze", 1)
	assert.Contains(t, first.ErrorMessage, "boom")
	assert.Contains(t, second.ErrorMessage, resilience.ErrCircuitOpen.Error())
	assert.Equal(t, resilience.CircuitOpen, cb.State())
}

func TestAnalyze_TimeoutBoundsModelCall(t *testing.T) {
	mm := new(mockModel)
	mm.On("Analyze", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	got := newTestAnalyzer(mm, WithTimeout(10*time.Millisecond)).Analyze(context.Background(), scrapedRecord(), screenshot)

	assert.False(t, got.AnalysisSuccessful)
	assert.Contains(t, got.ErrorMessage, context.DeadlineExceeded.Error())
}

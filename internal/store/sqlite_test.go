package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/engagement-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

var day = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func sampleRecord(p model.Platform, url string, views int64) model.MetadataRecord {
	return model.MetadataRecord{
		Platform:   p,
		URL:        url,
		Title:      "Sample",
		Views:      model.Int64(views),
		UploadDate: "January 10, 2024",
	}
}

func TestSQLite_SaveAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	analysis := &model.Analysis{
		ScreenshotTaken:    true,
		AnalysisSuccessful: true,
		OverallConfidence:  0.5,
		ConfidenceLevel:    "low",
		Metrics: []model.ReconciledMetric{{
			Metric:          model.FieldViews,
			ScrapedValue:    model.Int64(100),
			ConfidenceScore: 0.5,
			FinalValue:      model.Int64(100),
		}},
	}
	sr := NewRecord(sampleRecord(model.PlatformYouTube, "https://www.youtube.com/watch?v=a", 100), analysis, day.Add(time.Hour))
	sr.CreatorName = "Ann"
	sr.AccountName = "@ann"
	require.NoError(t, st.SaveRecord(ctx, sr))

	got, err := st.GetRecord(ctx, sr.ID)
	require.NoError(t, err)
	assert.Equal(t, sr.ID, got.ID)
	assert.Equal(t, "Ann", got.CreatorName)
	assert.Equal(t, "@ann", got.AccountName)
	assert.True(t, sr.CapturedAt.Equal(got.CapturedAt))
	assert.Equal(t, sr.Record, got.Record)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "low", got.Analysis.ConfidenceLevel)
	require.Len(t, got.Analysis.Metrics, 1)
	assert.Equal(t, model.Int64(100), got.Analysis.Metrics[0].FinalValue)
}

func TestSQLite_SaveAssignsIDAndTime(t *testing.T) {
	st := newTestSQLiteStore(t)
	sr := &StoredRecord{Record: sampleRecord(model.PlatformTikTok, "https://www.tiktok.com/@a/video/1", 5)}

	require.NoError(t, st.SaveRecord(context.Background(), sr))
	assert.NotEmpty(t, sr.ID)
	assert.False(t, sr.CapturedAt.IsZero())

	got, err := st.GetRecord(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Analysis)
}

func TestSQLite_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRecord(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_ListFiltersAndOrders(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	recs := []*StoredRecord{
		NewRecord(sampleRecord(model.PlatformYouTube, "https://youtu.be/1", 1), nil, day.Add(-time.Hour)),
		NewRecord(sampleRecord(model.PlatformYouTube, "https://youtu.be/2", 2), nil, day.Add(2*time.Hour)),
		NewRecord(sampleRecord(model.PlatformTikTok, "https://vm.tiktok.com/3", 3), nil, day.Add(5*time.Hour)),
		NewRecord(sampleRecord(model.PlatformFacebook, "https://fb.watch/4", 4), nil, day.Add(30*time.Hour)),
	}
	require.NoError(t, st.SaveRecords(ctx, recs))

	all, err := st.ListRecords(ctx, RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "https://fb.watch/4", all[0].Record.URL)
	assert.Equal(t, "https://youtu.be/1", all[3].Record.URL)

	sameDay := RecordFilter{From: day, To: day.Add(24 * time.Hour)}
	got, err := st.ListRecords(ctx, sameDay)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "https://vm.tiktok.com/3", got[0].Record.URL)
	assert.Equal(t, "https://youtu.be/2", got[1].Record.URL)

	n, err := st.CountRecords(ctx, sameDay)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	yt, err := st.ListRecords(ctx, RecordFilter{Platform: model.PlatformYouTube})
	require.NoError(t, err)
	assert.Len(t, yt, 2)

	page, err := st.ListRecords(ctx, RecordFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "https://vm.tiktok.com/3", page[0].Record.URL)
}

func TestSQLite_FailedRecordRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	rec := model.MetadataRecord{URL: "not a url"}
	rec.SetError(model.NewError(model.KindInvalidURL, "invalid url %q", "not a url"))

	sr := NewRecord(rec, nil, day)
	require.NoError(t, st.SaveRecord(context.Background(), sr))

	got, err := st.GetRecord(context.Background(), sr.ID)
	require.NoError(t, err)
	assert.Equal(t, model.KindInvalidURL, got.Record.ErrorKind)
	assert.True(t, got.Record.Failed())
}

func TestSQLite_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	sr := NewRecord(sampleRecord(model.PlatformYouTube, "https://youtu.be/x", 1), nil, day)
	require.NoError(t, st.SaveRecord(ctx, sr))

	require.NoError(t, st.DeleteRecord(ctx, sr.ID))
	_, err := st.GetRecord(ctx, sr.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteRecord(ctx, sr.ID), ErrNotFound)
}

func TestNewRecord_CopiesInputs(t *testing.T) {
	rec := sampleRecord(model.PlatformYouTube, "https://youtu.be/x", 10)
	analysis := &model.Analysis{Metrics: []model.ReconciledMetric{{Metric: model.FieldViews}}}

	sr := NewRecord(rec, analysis, day)
	*sr.Record.Views = 99
	sr.Analysis.Metrics[0].Notes = "changed"

	assert.Equal(t, int64(10), *rec.Views)
	assert.Empty(t, analysis.Metrics[0].Notes)
}

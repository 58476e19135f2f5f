package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/store"
)

var captured = time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

func sampleRecords() []store.StoredRecord {
	failed := model.MetadataRecord{URL: "bad"}
	failed.SetError(model.NewError(model.KindInvalidURL, "invalid url %q", "bad"))
	return []store.StoredRecord{
		{
			ID:          "r1",
			CreatorName: "Ann",
			AccountName: "@ann",
			CapturedAt:  captured,
			Record: model.MetadataRecord{
				Platform:   model.PlatformYouTube,
				URL:        "https://www.youtube.com/watch?v=a",
				Title:      "Big Video",
				Author:     "Channel One",
				Views:      model.Int64(1234567),
				Likes:      model.Int64(32000),
				Comments:   model.Int64(1024),
				UploadDate: "October 24, 2009",
			},
			Analysis: &model.Analysis{OverallConfidence: 0.6125, ConfidenceLevel: "medium"},
		},
		{ID: "r2", CapturedAt: captured.Add(time.Hour), Record: failed},
	}
}

func TestRow(t *testing.T) {
	recs := sampleRecords()
	row := Row(recs[0])
	require.Len(t, row, len(Columns))
	assert.Equal(t, "YouTube", row[4])
	assert.Equal(t, "1234567", row[7])
	assert.Equal(t, "32000", row[8])
	assert.Equal(t, "1024", row[9])
	assert.Equal(t, "", row[10])
	assert.Equal(t, "2024-01-15 09:30:00", row[12])
	assert.Equal(t, "0.61", row[14])
	assert.Equal(t, "medium", row[15])

	failed := Row(recs[1])
	assert.Contains(t, failed[13], "InvalidUrlError")
	assert.Equal(t, "", failed[14])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "r1", rows[1][0])
	assert.Equal(t, "Big Video", rows[1][5])
	assert.Equal(t, "r2", rows[2][0])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Columns, ",")+"\n", buf.String())
}

func TestBuildWorkbook(t *testing.T) {
	f, err := buildWorkbook(sampleRecords())
	require.NoError(t, err)
	sheet := f.Sheet[SheetName]
	require.NotNil(t, sheet)
	require.Len(t, sheet.Rows, 3)

	head := sheet.Rows[0].Cells[0]
	assert.Equal(t, "ID", head.Value)
	assert.True(t, head.GetStyle().Font.Bold)

	assert.Equal(t, "1234567", sheet.Rows[1].Cells[7].Value)
	assert.Equal(t, "", sheet.Rows[1].Cells[10].Value)
}

func TestColumnWidths(t *testing.T) {
	rows := [][]string{Row(sampleRecords()[0])}
	rows[0][5] = strings.Repeat("x", 80)

	w := columnWidths(rows)
	require.Len(t, w, len(Columns))
	assert.Equal(t, float64(MaxColumnWidth), w[5])
	assert.Equal(t, float64(len("ID")+2), w[0])
	assert.Equal(t, float64(len("https://www.youtube.com/watch?v=a")+2), w[3])
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleRecords()))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, SheetName, sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Creator Name", sheet.Rows[0].Cells[1].Value)
	assert.Equal(t, "Ann", sheet.Rows[1].Cells[1].Value)
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.csv", "out.xlsx"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, sampleRecords()))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	err := WriteFile(filepath.Join(dir, "out.pdf"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"csv":           FormatCSV,
		"XLSX":          FormatXLSX,
		"report.csv":    FormatCSV,
		"/tmp/a/b.XLSX": FormatXLSX,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("json")
	assert.Error(t, err)
}

// Package export writes stored records as CSV or XLSX reports.
package export

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/engagement-cli/internal/model"
	"github.com/sells-group/engagement-cli/internal/store"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// TimeLayout renders capture timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// Columns is the report header, in order.
var Columns = []string{
	"ID",
	"Creator Name",
	"Account Name",
	"URL",
	"Platform",
	"Title",
	"Author",
	"Views",
	"Likes",
	"Comments",
	"Shares",
	"Upload Date",
	"Captured At",
	"Error",
	"Confidence",
	"Confidence Level",
}

// countColumns maps report columns to the count field they hold.
var countColumns = map[int]model.Field{
	7:  model.FieldViews,
	8:  model.FieldLikes,
	9:  model.FieldComments,
	10: model.FieldShares,
}

// ParseFormat maps "csv"/"xlsx" (or a file name ending in one) to a Format.
func ParseFormat(s string) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(s), "."))
	if ext == "" {
		ext = strings.ToLower(s)
	}
	switch Format(ext) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unsupported format %q", s)
}

// Row renders one record in Columns order. Absent counts are empty.
func Row(r store.StoredRecord) []string {
	rec := r.Record
	row := []string{
		r.ID,
		r.CreatorName,
		r.AccountName,
		rec.URL,
		rec.Platform.DisplayName(),
		rec.Title,
		rec.Author,
		countText(rec.Views),
		countText(rec.Likes),
		countText(rec.Comments),
		countText(rec.Shares),
		rec.UploadDate,
		r.CapturedAt.UTC().Format(TimeLayout),
		rec.Error,
		"",
		"",
	}
	if r.Analysis != nil {
		row[14] = strconv.FormatFloat(r.Analysis.OverallConfidence, 'f', 2, 64)
		row[15] = r.Analysis.ConfidenceLevel
	}
	return row
}

func countText(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// Write renders recs to w in format f.
func Write(w io.Writer, f Format, recs []store.StoredRecord) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, recs)
	case FormatXLSX:
		return WriteXLSX(w, recs)
	}
	return eris.Errorf("export: unsupported format %q", f)
}

// WriteFile creates path and writes recs in the format its extension names.
func WriteFile(path string, recs []store.StoredRecord) error {
	f, err := ParseFormat(path)
	if err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	if err := Write(out, f, recs); err != nil {
		out.Close()
		return err
	}
	return eris.Wrap(out.Close(), "export: close file")
}

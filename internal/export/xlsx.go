package export

import (
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/engagement-cli/internal/store"
)

// SheetName is the worksheet holding the report.
const SheetName = "Engagement Summary"

// MaxColumnWidth caps auto-sized columns, in characters.
const MaxColumnWidth = 50

// WriteXLSX writes recs as a single-sheet workbook.
func WriteXLSX(w io.Writer, recs []store.StoredRecord) error {
	f, err := buildWorkbook(recs)
	if err != nil {
		return err
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func headerStyle() *xlsx.Style {
	s := xlsx.NewStyle()
	s.Font.Bold = true
	s.Font.Color = "FFFFFFFF"
	s.Fill = *xlsx.NewFill("solid", "FF366092", "FF366092")
	s.Alignment.Horizontal = "center"
	s.Alignment.Vertical = "center"
	s.ApplyFont = true
	s.ApplyFill = true
	s.ApplyAlignment = true
	return s
}

func buildWorkbook(recs []store.StoredRecord) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	style := headerStyle()
	header := sheet.AddRow()
	for _, name := range Columns {
		c := header.AddCell()
		c.SetString(name)
		c.SetStyle(style)
	}

	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		values := Row(r)
		rows = append(rows, values)
		row := sheet.AddRow()
		for i, v := range values {
			c := row.AddCell()
			if field, ok := countColumns[i]; ok {
				if n := r.Record.Count(field); n != nil {
					c.SetInt64(*n)
					continue
				}
			}
			c.SetString(v)
		}
	}

	for i, w := range columnWidths(rows) {
		sheet.SetColWidth(i, i, w)
	}
	return f, nil
}

// columnWidths sizes each column to its longest value plus padding, capped
// at MaxColumnWidth.
func columnWidths(rows [][]string) []float64 {
	widths := make([]float64, len(Columns))
	for i, name := range Columns {
		widths[i] = float64(utf8.RuneCountInString(name))
	}
	for _, row := range rows {
		for i, v := range row {
			widths[i] = max(widths[i], float64(utf8.RuneCountInString(v)))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i]+2, MaxColumnWidth)
	}
	return widths
}

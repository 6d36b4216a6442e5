package ingest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vainnor/session-report/models"
)

// ReadXLSX reads records from a workbook. The first row is a header. An empty
// sheet name selects the first worksheet.
func (l *Loader) ReadXLSX(r io.Reader, sheet string) ([]models.Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	// Date cells come back formatted with the workbook's own number format,
	// which rarely matches the layout; fall back to their serial value.
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}
	for i := range rows {
		if i >= len(raw) {
			break
		}
		for j := colStart; j <= colEnd && j < len(rows[i]) && j < len(raw[i]); j++ {
			if _, err := l.parser.ParseTime(rows[i][j]); err != nil {
				rows[i][j] = raw[i][j]
			}
		}
	}

	p := l.parser
	p.AllowSerial = true
	return l.parseRows(p, rows)
}

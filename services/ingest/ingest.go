package ingest

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/vainnor/session-report/models"
)

// Column order of the session log.
const (
	colUser = iota
	colServer
	colEnvironment
	colStart
	colEnd
)

// RowError reports a row that cannot be turned into a session record.
type RowError struct {
	Row    int
	Reason string
	Err    error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row %d: %s: %v", e.Row, e.Reason, e.Err)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *RowError) Unwrap() error { return e.Err }

// Parser turns raw cells into records.
type Parser struct {
	// Layout is the Go time layout of start and end cells.
	Layout string
	// AllowSerial accepts spreadsheet serial date numbers as well.
	AllowSerial bool
}

// ParseTime parses a timestamp cell.
func (p Parser) ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(p.Layout, s)
	if err == nil {
		return t, nil
	}
	if p.AllowSerial {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil {
			if st, serr := excelize.ExcelDateToTime(f, false); serr == nil {
				return st.Round(time.Second), nil
			}
		}
	}
	return time.Time{}, err
}

// ParseRow builds a record from one row of cells. Blank rows return ok=false
// and no error. The start time must parse; an end time that is missing or does
// not parse marks the session as still open.
func (p Parser) ParseRow(row int, cells []string) (rec models.Record, ok bool, err error) {
	blank := true
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			blank = false
			break
		}
	}
	if blank {
		return models.Record{}, false, nil
	}
	if len(cells) <= colStart {
		return models.Record{}, false, &RowError{Row: row, Reason: fmt.Sprintf("expected at least %d columns, got %d", colStart+1, len(cells))}
	}

	rec = models.Record{
		User:        strings.TrimSpace(cells[colUser]),
		Server:      strings.TrimSpace(cells[colServer]),
		Environment: strings.TrimSpace(cells[colEnvironment]),
	}
	if rec.User == "" || rec.Server == "" || rec.Environment == "" {
		return models.Record{}, false, &RowError{Row: row, Reason: "user, server and environment are required"}
	}

	rec.StartTime, err = p.ParseTime(cells[colStart])
	if err != nil {
		return models.Record{}, false, &RowError{Row: row, Reason: "unparseable start time", Err: err}
	}
	if len(cells) > colEnd {
		if end, err := p.ParseTime(cells[colEnd]); err == nil {
			rec.EndTime = &end
		}
	}
	return rec, true, nil
}

// Loader reads session records from files and HTTP endpoints.
type Loader struct {
	logger *zap.Logger
	client *http.Client
	parser Parser
}

func NewLoader(logger *zap.Logger, parser Parser) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		parser: parser,
	}
}

// DetectFormat guesses the input format from a path or URL.
func DetectFormat(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return "json", nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return "xlsx", nil
	case ".csv", ".txt":
		return "csv", nil
	case ".json":
		return "json", nil
	}
	return "", fmt.Errorf("cannot detect input format of %q", path)
}

// Load reads records from path in the given format. An empty format is
// detected from the path.
func (l *Loader) Load(ctx context.Context, path, format, sheet string) ([]models.Record, error) {
	if format == "" {
		var err error
		if format, err = DetectFormat(path); err != nil {
			return nil, err
		}
	}

	if format == "json" && (strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")) {
		return l.FetchRecords(ctx, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []models.Record
	switch format {
	case "xlsx":
		records, err = l.ReadXLSX(f, sheet)
	case "csv":
		records, err = l.ReadCSV(f)
	case "json":
		records, err = l.DecodeJSON(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	l.logger.Info("Loaded session records",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("records", len(records)))
	return records, nil
}

// parseRows converts rows after the header into records.
func (l *Loader) parseRows(p Parser, rows [][]string) ([]models.Record, error) {
	var records []models.Record
	open := 0
	for i, cells := range rows {
		if i == 0 {
			continue
		}
		rec, ok, err := p.ParseRow(i+1, cells)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if rec.EndTime == nil {
			open++
		}
		records = append(records, rec)
	}
	l.logger.Debug("Parsed rows",
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)),
		zap.Int("open", open))
	return records, nil
}

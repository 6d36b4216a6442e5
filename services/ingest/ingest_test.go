package ingest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"github.com/vainnor/session-report/models"
)

const layout = "01/02/2006 03:04:05 PM"

const sampleCSV = `User,Server,Environment,SessionStartTime,SessionEndTime
alice,CTXSRV01,MonacoDG,03/04/2024 09:00:00 AM,03/04/2024 10:30:00 AM
bob,CTXSRV02,MonacoSim,03/04/2024 01:15:00 PM,
carol,CTXSRV01,MonacoDG,03/04/2024 02:00:00 PM,still running

`

func newLoader() *Loader {
	return NewLoader(nil, Parser{Layout: layout})
}

func checkSample(t *testing.T, records []models.Record) {
	t.Helper()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	alice := records[0]
	if alice.User != "alice" || alice.Server != "CTXSRV01" || alice.Environment != "MonacoDG" {
		t.Fatalf("unexpected record %+v", alice)
	}
	if want := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC); !alice.StartTime.Equal(want) {
		t.Fatalf("start = %v, want %v", alice.StartTime, want)
	}
	if alice.EndTime == nil || !alice.EndTime.Equal(time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", alice.EndTime)
	}
	if want := time.Date(2024, 3, 4, 13, 15, 0, 0, time.UTC); !records[1].StartTime.Equal(want) {
		t.Fatalf("PM start = %v, want %v", records[1].StartTime, want)
	}
	if records[1].EndTime != nil || records[2].EndTime != nil {
		t.Fatal("missing or unparseable end times should mark sessions open")
	}
}

func TestReadCSV(t *testing.T) {
	records, err := newLoader().ReadCSV(strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, records)
}

func TestReadCSVUTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte(sampleCSV))
	if err != nil {
		t.Fatal(err)
	}
	records, err := newLoader().ReadCSV(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, records)
}

func TestReadCSVRejectsBadStart(t *testing.T) {
	in := "User,Server,Environment,Start,End\nalice,CTXSRV01,MonacoDG,yesterday,\n"
	_, err := newLoader().ReadCSV(strings.NewReader(in))
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("expected RowError, got %v", err)
	}
	if rowErr.Row != 2 {
		t.Fatalf("Row = %d, want 2", rowErr.Row)
	}
}

func TestParseRowShortRow(t *testing.T) {
	_, _, err := Parser{Layout: layout}.ParseRow(7, []string{"alice", "CTXSRV01"})
	var rowErr *RowError
	if !errors.As(err, &rowErr) || rowErr.Row != 7 {
		t.Fatalf("expected RowError for row 7, got %v", err)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"User", "Server", "Environment", "SessionStartTime", "SessionEndTime"},
		{"alice", "CTXSRV01", "MonacoDG", "03/04/2024 09:00:00 AM", "03/04/2024 10:30:00 AM"},
		{"bob", "CTXSRV02", "MonacoSim", "03/04/2024 01:15:00 PM", ""},
		{"carol", "CTXSRV01", "MonacoDG", "03/04/2024 02:00:00 PM", "still running"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	records, err := newLoader().ReadXLSX(&buf, "")
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, records)
}

func TestLoadDetectsFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	records, err := newLoader().Load(context.Background(), path, "", "")
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, records)

	if _, err := DetectFormat("sessions.ods"); err == nil {
		t.Fatal("expected error for unknown extension")
	}
	if format, _ := DetectFormat("https://example.com/export"); format != "json" {
		t.Fatalf("DetectFormat(url) = %q, want json", format)
	}
}

func TestFetchRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"user": "alice", "server": "CTXSRV01", "environment": "MonacoDG",
			 "start_time": "03/04/2024 09:00:00 AM", "end_time": "03/04/2024 10:30:00 AM"},
			{"user": "bob", "server": "CTXSRV02", "environment": "MonacoSim",
			 "start_time": "03/04/2024 01:15:00 PM"},
			{"user": "carol", "server": "CTXSRV01", "environment": "MonacoDG",
			 "start_time": "03/04/2024 02:00:00 PM", "end_time": "still running"}
		]`))
	}))
	defer srv.Close()

	records, err := newLoader().Load(context.Background(), srv.URL, "", "")
	if err != nil {
		t.Fatal(err)
	}
	checkSample(t, records)
}

func TestFetchRecordsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newLoader().FetchRecords(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for bad status")
	}
}

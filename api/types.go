package api

import (
	"time"

	"github.com/vainnor/session-report/report"
	"github.com/vainnor/session-report/timeline"
	"github.com/vainnor/session-report/types"
)

type ReportSummary struct {
	Title        string                        `json:"title"`
	GeneratedAt  time.Time                     `json:"generated_at"`
	WindowStart  time.Time                     `json:"window_start"`
	WindowEnd    time.Time                     `json:"window_end"`
	Servers      []string                      `json:"servers"`
	Capacity     int                           `json:"capacity"`
	Environments []string                      `json:"environments"`
	Users        int                           `json:"users"`
	Offenders    []string                      `json:"offenders"`
	Peaks        map[string]report.PeakSummary `json:"peaks"`
	Stats        types.CollectionStats         `json:"stats"`
}

type SeriesResponse struct {
	Name   string            `json:"name"`
	Step   bool              `json:"step"`
	Series []timeline.Series `json:"series"`
}

type OffendersResponse struct {
	Threshold int      `json:"threshold,omitempty"`
	Offenders []string `json:"offenders"`
}

type errorResponse struct {
	Error string `json:"error"`
}

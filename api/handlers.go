package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vainnor/session-report/report"
	"github.com/vainnor/session-report/timeline"
)

type handlers struct {
	report    *report.Report
	collector Collector
	logger    *zap.Logger
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Error encoding response", zap.Error(err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *handlers) redirectToReport(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/report", http.StatusFound)
}

// GetReportPage serves the rendered HTML report
func (h *handlers) GetReportPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderHTML(w, h.report); err != nil {
		h.logger.Error("Error rendering report", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetReportSummary returns the report window, peaks and collection stats
func (h *handlers) GetReportSummary(w http.ResponseWriter, r *http.Request) {
	a := h.report.Analysis
	envs := make([]string, 0, len(a.Sessions))
	for _, s := range a.Sessions {
		if s.Label != timeline.TotalLabel {
			envs = append(envs, s.Label)
		}
	}

	h.writeJSON(w, http.StatusOK, ReportSummary{
		Title:        h.report.Title,
		GeneratedAt:  h.report.GeneratedAt,
		WindowStart:  h.report.WindowStart,
		WindowEnd:    h.report.WindowEnd,
		Servers:      h.report.Layout.Servers,
		Capacity:     h.report.Layout.Capacity,
		Environments: envs,
		Users:        len(a.PerUser),
		Offenders:    nonNil(a.Offenders),
		Peaks:        h.report.Peaks,
		Stats:        h.report.Stats,
	})
}

// GetSeries returns one family of concurrency series. Pass step=true for the
// sample-and-hold form and user=<name> to pick a single per-user series.
func (h *handlers) GetSeries(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]

	step := false
	if v := r.URL.Query().Get("step"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid step value %q", v))
			return
		}
		step = b
	}

	a := h.report.Analysis
	var series []timeline.Series
	switch name {
	case "sessions":
		series = a.Sessions
	case "users":
		series = []timeline.Series{a.Users}
	case "average":
		series = []timeline.Series{a.Average}
	case "per-user":
		if user := r.URL.Query().Get("user"); user != "" {
			s, ok := a.UserSeries(user)
			if !ok {
				h.writeError(w, http.StatusNotFound, fmt.Sprintf("no sessions for user %q", user))
				return
			}
			series = []timeline.Series{s}
		} else {
			series = a.PerUser
		}
	default:
		h.writeError(w, http.StatusNotFound, "Invalid series. Must be 'sessions', 'users', 'per-user' or 'average'")
		return
	}

	if step {
		stepped := make([]timeline.Series, len(series))
		for i, s := range series {
			st, err := s.Step()
			if err != nil {
				h.logger.Error("Error building step series", zap.String("series", name), zap.Error(err))
				h.writeError(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			stepped[i] = st
		}
		series = stepped
	}

	h.writeJSON(w, http.StatusOK, SeriesResponse{Name: name, Step: step, Series: series})
}

// GetTimeline returns the slot allocation of every session
func (h *handlers) GetTimeline(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.report.Layout)
}

func (h *handlers) GetOffenders(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, OffendersResponse{
		Threshold: h.report.OffenderThreshold,
		Offenders: nonNil(h.report.Analysis.Offenders),
	})
}

func (h *handlers) GetCollectorStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.collector.GetStats())
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

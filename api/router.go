package api

import (
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vainnor/session-report/report"
	"github.com/vainnor/session-report/types"
)

type Collector interface {
	GetStats() types.CollectionStats
}

// NewRouter creates and configures a new router serving a finished report.
// The report is never modified after the router is built.
func NewRouter(r *report.Report, collector Collector, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{report: r, collector: collector, logger: logger}

	router := mux.NewRouter()
	router.Use(RequestLogger(logger))

	router.HandleFunc("/", h.redirectToReport).Methods("GET")
	router.HandleFunc("/report", h.GetReportPage).Methods("GET")

	// Apply rate limiting middleware to the JSON endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.Use(NewRateLimiter(defaultMaxRequests, defaultWindow).Middleware)

	api.HandleFunc("/report", h.GetReportSummary).Methods("GET")
	api.HandleFunc("/series/{name}", h.GetSeries).Methods("GET")
	api.HandleFunc("/timeline", h.GetTimeline).Methods("GET")
	api.HandleFunc("/offenders", h.GetOffenders).Methods("GET")
	api.HandleFunc("/stats", h.GetCollectorStats).Methods("GET")

	return router
}

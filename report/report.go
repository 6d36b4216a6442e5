package report

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vainnor/session-report/collector"
	"github.com/vainnor/session-report/timeline"
	"github.com/vainnor/session-report/types"
)

// Options controls how a report is computed and drawn.
type Options struct {
	Title             string
	Environments      []string
	Colors            map[string]string
	SlotCapacity      int
	AutoGrow          bool
	OffenderThreshold int
	OpenPadding       time.Duration
}

// Report is the finished analysis of one session log.
type Report struct {
	Title             string                 `json:"title"`
	GeneratedAt       time.Time              `json:"generated_at"`
	WindowStart       time.Time              `json:"window_start"`
	WindowEnd         time.Time              `json:"window_end"`
	OffenderThreshold int                    `json:"offender_threshold"`
	Analysis          *timeline.Analysis     `json:"-"`
	Layout            *timeline.Layout       `json:"-"`
	Colors            map[string]string      `json:"colors"`
	Stats             types.CollectionStats  `json:"stats"`
	Peaks             map[string]PeakSummary `json:"peaks"`
}

// PeakSummary records the highest value of a series and when it was first
// reached.
type PeakSummary struct {
	Value float64   `json:"value"`
	At    time.Time `json:"at"`
}

// Build sweeps the registry and lays out the server timeline.
func Build(c *collector.Collector, opts Options, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SlotCapacity == 0 {
		opts.SlotCapacity = timeline.DefaultSlotCapacity
	}
	if opts.OffenderThreshold == 0 {
		opts.OffenderThreshold = timeline.DefaultOffenderThreshold
	}
	if opts.OpenPadding == 0 {
		opts.OpenPadding = timeline.DefaultOpenPadding
	}

	spans, err := timeline.Resolve(c.Sessions(), opts.OpenPadding)
	if err != nil {
		return nil, err
	}

	analysis, err := timeline.Sweep(spans, timeline.SweepOptions{
		Environments:      opts.Environments,
		OffenderThreshold: opts.OffenderThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("sweeping sessions: %w", err)
	}

	layout, err := timeline.AllocateSlots(spans, opts.SlotCapacity)
	var capErr *timeline.CapacityExceededError
	if errors.As(err, &capErr) && opts.AutoGrow {
		capacity := opts.SlotCapacity
		for _, peak := range timeline.PeakPerServer(spans) {
			if peak > capacity {
				capacity = peak
			}
		}
		logger.Warn("Slot capacity exceeded, retrying with observed peak",
			zap.String("server", capErr.Server),
			zap.Time("at", capErr.At),
			zap.Int("capacity", opts.SlotCapacity),
			zap.Int("retry_capacity", capacity))
		layout, err = timeline.AllocateSlots(spans, capacity)
	}
	if err != nil {
		return nil, fmt.Errorf("allocating timeline slots: %w", err)
	}

	r := &Report{
		Title:             opts.Title,
		GeneratedAt:       time.Now(),
		OffenderThreshold: opts.OffenderThreshold,
		Analysis:          analysis,
		Layout:            layout,
		Colors:            opts.Colors,
		Stats:             c.GetStats(),
		Peaks:             make(map[string]PeakSummary),
	}
	r.WindowStart, r.WindowEnd = window(analysis.Times)

	for _, s := range analysis.Sessions {
		r.addPeak(s)
	}
	r.addPeak(analysis.Users)
	r.addPeak(analysis.Average)

	synthetic := 0
	for _, s := range spans {
		if s.Synthetic {
			synthetic++
		}
	}
	logger.Info("Report built",
		zap.Int("sessions", len(spans)),
		zap.Int("open_sessions", synthetic),
		zap.Int("servers", len(layout.Servers)),
		zap.Int("users", len(analysis.PerUser)),
		zap.Strings("offenders", analysis.Offenders),
		zap.Time("window_start", r.WindowStart),
		zap.Time("window_end", r.WindowEnd))
	return r, nil
}

func (r *Report) addPeak(s timeline.Series) {
	v, at := s.Peak()
	r.Peaks[s.Label] = PeakSummary{Value: v, At: at}
}

// window widens the sampled range to whole days: from midnight of the first
// sample to midnight after the last one.
func window(times []time.Time) (time.Time, time.Time) {
	first, last := times[0], times[0]
	for _, t := range times {
		if t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	return midnight(first), midnight(last).AddDate(0, 0, 1)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

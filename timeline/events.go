package timeline

import (
	"sort"
	"time"

	"github.com/vainnor/session-report/models"
)

// DefaultOpenPadding is added past the end of the observed window to give
// open sessions an end time.
const DefaultOpenPadding = time.Minute

// Span is a session with a resolved end time, ready to be swept.
type Span struct {
	Key models.SessionKey
	End time.Time
	// Synthetic is set when End was assigned because the session is open.
	Synthetic bool
}

func (s Span) Start() time.Time { return s.Key.StartTime }

// Resolve turns sessions into spans. Open sessions end at the latest recorded
// end plus padding, or the latest start plus padding if that is later, so they
// stay active until the end of the observed window. The input is not modified.
func Resolve(sessions []models.Session, padding time.Duration) ([]Span, error) {
	if len(sessions) == 0 {
		return nil, ErrEmptyInput
	}

	var horizon time.Time
	for _, s := range sessions {
		if s.EndTime != nil && s.EndTime.After(horizon) {
			horizon = *s.EndTime
		}
		if s.Open() && s.StartTime.After(horizon) {
			horizon = s.StartTime
		}
	}
	openEnd := horizon.Add(padding)

	spans := make([]Span, 0, len(sessions))
	for _, s := range sessions {
		span := Span{Key: s.SessionKey}
		if s.EndTime != nil {
			span.End = *s.EndTime
		} else {
			span.End = openEnd
			span.Synthetic = true
		}
		spans = append(spans, span)
	}
	return spans, nil
}

// EventKind tags an event as the start or the end of a session.
type EventKind int

const (
	// End sorts before Start so back-to-back sessions never overlap.
	End EventKind = iota
	Start
)

func (k EventKind) String() string {
	if k == Start {
		return "start"
	}
	return "end"
}

// Event marks a session starting or ending at Time.
type Event struct {
	Time time.Time
	Kind EventKind
	Span *Span
}

// buildEvents returns two events per span. Zero-length spans cover no time and
// produce no events.
func buildEvents(spans []Span) []Event {
	events := make([]Event, 0, 2*len(spans))
	for i := range spans {
		s := &spans[i]
		if !s.End.After(s.Start()) {
			continue
		}
		events = append(events,
			Event{Time: s.Start(), Kind: Start, Span: s},
			Event{Time: s.End, Kind: End, Span: s})
	}
	return events
}

// eventLess orders events by time, then ends before starts, then by session
// key so the order never depends on input order.
func eventLess(a, b Event) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.Span.Key.Less(b.Span.Key)
}

// sortedEvents returns the events of spans in sweep order.
func sortedEvents(spans []Span) []Event {
	events := buildEvents(spans)
	sort.Slice(events, func(i, j int) bool {
		return eventLess(events[i], events[j])
	})
	return events
}

// sortedServerEvents orders events by server first, keeping sweep order within
// each server.
func sortedServerEvents(spans []Span) []Event {
	events := buildEvents(spans)
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if a.Span.Key.Server != b.Span.Key.Server {
			return a.Span.Key.Server < b.Span.Key.Server
		}
		return eventLess(a, b)
	})
	return events
}

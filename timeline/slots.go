package timeline

import (
	"fmt"
	"sort"
	"time"

	"github.com/vainnor/session-report/models"
)

// DefaultSlotCapacity is the number of timeline rows per server.
const DefaultSlotCapacity = 5

// Allocation places one session in a row of its server's timeline.
type Allocation struct {
	Server    string            `json:"server"`
	Slot      int               `json:"slot"`
	Start     time.Time         `json:"start"`
	End       time.Time         `json:"end"`
	Session   models.SessionKey `json:"session"`
	Synthetic bool              `json:"synthetic,omitempty"`
}

// Layout is the result of slot allocation.
type Layout struct {
	Servers     []string     `json:"servers"`
	Capacity    int          `json:"capacity"`
	Allocations []Allocation `json:"allocations"`
}

// AllocateSlots assigns every span a row on its server such that no two
// overlapping spans share a row. Rows are taken first-fit, lowest index first.
// A server that needs more than capacity rows at some instant fails with
// *CapacityExceededError.
func AllocateSlots(spans []Span, capacity int) (*Layout, error) {
	if len(spans) == 0 {
		return nil, ErrEmptyInput
	}
	if capacity < 1 {
		return nil, fmt.Errorf("slot capacity must be positive, got %d", capacity)
	}

	layout := &Layout{Servers: servers(spans), Capacity: capacity}
	// Each row holds the key of the span occupying it; spans are matched by
	// identity when they end.
	rows := make(map[string][]*models.SessionKey, len(layout.Servers))
	for _, s := range layout.Servers {
		rows[s] = make([]*models.SessionKey, capacity)
	}

	for _, ev := range sortedServerEvents(spans) {
		key := &ev.Span.Key
		slots := rows[key.Server]

		if ev.Kind == End {
			freed := false
			for i, held := range slots {
				if held == key {
					slots[i] = nil
					freed = true
					break
				}
			}
			if !freed {
				return nil, fmt.Errorf("server %s: session %s ended without holding a slot", key.Server, key)
			}
			continue
		}

		slot := -1
		for i, held := range slots {
			if held == nil {
				slot = i
				break
			}
		}
		if slot < 0 {
			return nil, &CapacityExceededError{
				Server:   key.Server,
				Capacity: capacity,
				At:       ev.Time,
				Session:  *key,
			}
		}
		slots[slot] = key
		layout.Allocations = append(layout.Allocations, Allocation{
			Server:    key.Server,
			Slot:      slot,
			Start:     ev.Span.Start(),
			End:       ev.Span.End,
			Session:   *key,
			Synthetic: ev.Span.Synthetic,
		})
	}
	return layout, nil
}

// PeakPerServer returns the largest number of simultaneously active spans on
// each server. It is the smallest capacity AllocateSlots accepts.
func PeakPerServer(spans []Span) map[string]int {
	peaks := make(map[string]int)
	active := make(map[string]int)
	for _, s := range servers(spans) {
		peaks[s] = 0
	}
	for _, ev := range sortedServerEvents(spans) {
		server := ev.Span.Key.Server
		if ev.Kind == End {
			active[server]--
			continue
		}
		active[server]++
		if active[server] > peaks[server] {
			peaks[server] = active[server]
		}
	}
	return peaks
}

func servers(spans []Span) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range spans {
		if !seen[s.Key.Server] {
			seen[s.Key.Server] = true
			out = append(out, s.Key.Server)
		}
	}
	sort.Strings(out)
	return out
}

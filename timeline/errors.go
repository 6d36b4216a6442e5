package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/vainnor/session-report/models"
)

// ErrEmptyInput is returned when there are no sessions to analyze, so there
// is no window to sweep over.
var ErrEmptyInput = errors.New("no sessions to analyze")

// CapacityExceededError is returned by AllocateSlots when a server has more
// concurrently active sessions than it has rows.
type CapacityExceededError struct {
	Server   string
	Capacity int
	At       time.Time
	Session  models.SessionKey
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("server %s: all %d slots in use at %s, cannot place session %s",
		e.Server, e.Capacity, e.At.Format(time.DateTime), e.Session)
}

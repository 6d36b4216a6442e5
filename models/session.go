package models

import (
	"fmt"
	"time"
)

// SessionKey identifies a session. Two records with the same key describe the
// same session, possibly at different points of its life.
type SessionKey struct {
	User        string    `json:"user"`
	Server      string    `json:"server"`
	Environment string    `json:"environment"`
	StartTime   time.Time `json:"start_time"`
}

// Less orders keys by start time, then user, server and environment.
func (k SessionKey) Less(o SessionKey) bool {
	if !k.StartTime.Equal(o.StartTime) {
		return k.StartTime.Before(o.StartTime)
	}
	if k.User != o.User {
		return k.User < o.User
	}
	if k.Server != o.Server {
		return k.Server < o.Server
	}
	return k.Environment < o.Environment
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s@%s/%s %s", k.User, k.Server, k.Environment, k.StartTime.Format(time.DateTime))
}

// Record is a raw row from the session log. A nil EndTime means the session
// was still open when the log was exported.
type Record struct {
	User        string     `json:"user"`
	Server      string     `json:"server"`
	Environment string     `json:"environment"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

// Key returns the identity of the session the record describes. The start
// time is converted to UTC so keys compare equal with == whatever zone the
// timestamp was parsed in.
func (r Record) Key() SessionKey {
	return SessionKey{
		User:        r.User,
		Server:      r.Server,
		Environment: r.Environment,
		StartTime:   r.StartTime.UTC(),
	}
}

// Session represents a user occupying a server in a given environment
type Session struct {
	SessionKey
	EndTime *time.Time `json:"end_time,omitempty"`
}

// NewSession builds a session from a raw record, copying the end time.
func NewSession(r Record) *Session {
	s := &Session{SessionKey: r.Key()}
	if r.EndTime != nil {
		end := r.EndTime.UTC()
		s.EndTime = &end
	}
	return s
}

// Open reports whether the session has no recorded end.
func (s *Session) Open() bool {
	return s.EndTime == nil
}

// Duration returns end minus start, and false for open sessions.
func (s *Session) Duration() (time.Duration, bool) {
	if s.EndTime == nil {
		return 0, false
	}
	return s.EndTime.Sub(s.StartTime), true
}

func (s *Session) String() string {
	end := "open"
	if s.EndTime != nil {
		end = s.EndTime.Format(time.DateTime)
	}
	return fmt.Sprintf("Session(%s - %s)", s.SessionKey, end)
}

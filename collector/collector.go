package collector

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vainnor/session-report/models"
	"github.com/vainnor/session-report/types"
)

// DataIntegrityError is returned when two records share a session identity
// but disagree on a recorded end time.
type DataIntegrityError struct {
	Existing models.Record
	Incoming models.Record
}

func (e *DataIntegrityError) Error() string {
	// Report the pair in a fixed order so the message does not depend on
	// which record was read first.
	a, b := e.Existing, e.Incoming
	if b.EndTime.Before(*a.EndTime) {
		a, b = b, a
	}
	return fmt.Sprintf("conflicting end times for session %s: %s vs %s",
		a.Key(), a.EndTime.Format(time.DateTime), b.EndTime.Format(time.DateTime))
}

// InvalidIntervalError is returned for a record that ends before it starts.
type InvalidIntervalError struct {
	Record models.Record
}

func (e *InvalidIntervalError) Error() string {
	return fmt.Sprintf("session %s ends before it starts (%s)",
		e.Record.Key(), e.Record.EndTime.Format(time.DateTime))
}

// Collector is the session registry. It merges raw records into canonical
// sessions keyed by identity.
type Collector struct {
	logger *zap.Logger
	// Canonical sessions by identity
	sessions map[models.SessionKey]*models.Session
	// Session identities per user
	byUser map[string]map[models.SessionKey]struct{}
	// Collection stats
	stats types.CollectionStats
}

func NewCollector(logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		logger:   logger,
		sessions: make(map[models.SessionKey]*models.Session),
		byUser:   make(map[string]map[models.SessionKey]struct{}),
		stats: types.CollectionStats{
			StartTime: time.Now(),
		},
	}
}

func (c *Collector) GetStats() types.CollectionStats {
	stats := c.stats
	stats.Users = len(c.byUser)
	stats.OpenSessions = 0
	for _, s := range c.sessions {
		if s.Open() {
			stats.OpenSessions++
		}
	}
	return stats
}

// Register merges a record into the registry and returns the canonical
// session for its identity.
//
// A complete record replaces an open one, an open record never replaces a
// complete one, and two complete records must agree on their end time. The
// final contents do not depend on the order records are registered in.
func (c *Collector) Register(r models.Record) (*models.Session, error) {
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		return nil, &InvalidIntervalError{Record: r}
	}

	c.stats.RecordsSeen++
	c.stats.LastUpdate = time.Now()

	key := r.Key()
	existing, exists := c.sessions[key]
	switch {
	case !exists:
		s := models.NewSession(r)
		c.sessions[key] = s
		c.stats.SessionsInserted++
	case existing.Open():
		if r.EndTime == nil {
			c.stats.Duplicates++
			return existing, nil
		}
		s := models.NewSession(r)
		c.sessions[key] = s
		c.stats.SessionsCompleted++
		c.logger.Debug("Completed open session",
			zap.Stringer("session", key),
			zap.Time("end_time", *r.EndTime))
	case r.EndTime == nil:
		c.stats.PartialsDiscarded++
		return existing, nil
	case !existing.EndTime.Equal(*r.EndTime):
		return nil, &DataIntegrityError{
			Existing: models.Record{
				User:        existing.User,
				Server:      existing.Server,
				Environment: existing.Environment,
				StartTime:   existing.StartTime,
				EndTime:     existing.EndTime,
			},
			Incoming: r,
		}
	default:
		c.stats.Duplicates++
		return existing, nil
	}

	keys, ok := c.byUser[r.User]
	if !ok {
		keys = make(map[models.SessionKey]struct{})
		c.byUser[r.User] = keys
	}
	keys[key] = struct{}{}

	return c.sessions[key], nil
}

// RegisterAll registers records in order and stops at the first error.
func (c *Collector) RegisterAll(records []models.Record) error {
	for i, r := range records {
		if _, err := c.Register(r); err != nil {
			return fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	stats := c.GetStats()
	c.logger.Info("Collection complete",
		zap.Int64("records", stats.RecordsSeen),
		zap.Int64("sessions", stats.SessionsInserted),
		zap.Int64("completed", stats.SessionsCompleted),
		zap.Int64("partials_discarded", stats.PartialsDiscarded),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int("open", stats.OpenSessions),
		zap.Int("users", stats.Users))
	return nil
}

// Len returns the number of distinct sessions.
func (c *Collector) Len() int {
	return len(c.sessions)
}

// Lookup returns the session registered under key.
func (c *Collector) Lookup(key models.SessionKey) (*models.Session, bool) {
	s, ok := c.sessions[key]
	return s, ok
}

// Sessions returns copies of all sessions ordered by key.
func (c *Collector) Sessions() []models.Session {
	out := make([]models.Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, *s)
	}
	sortSessions(out)
	return out
}

// Users returns the distinct users, sorted.
func (c *Collector) Users() []string {
	users := make([]string, 0, len(c.byUser))
	for u := range c.byUser {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}

// SessionsForUser returns copies of the sessions of one user ordered by key.
func (c *Collector) SessionsForUser(user string) []models.Session {
	keys := c.byUser[user]
	out := make([]models.Session, 0, len(keys))
	for k := range keys {
		out = append(out, *c.sessions[k])
	}
	sortSessions(out)
	return out
}

func sortSessions(s []models.Session) {
	sort.Slice(s, func(i, j int) bool {
		return s[i].SessionKey.Less(s[j].SessionKey)
	})
}

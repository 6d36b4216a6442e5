package collector

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/vainnor/session-report/models"
)

var base = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func endAt(h, m int) *time.Time {
	t := at(h, m)
	return &t
}

func record(user string, start time.Time, end *time.Time) models.Record {
	return models.Record{User: user, Server: "CTXSRV01", Environment: "MonacoDG", StartTime: start, EndTime: end}
}

func TestRegisterInsertsNewSession(t *testing.T) {
	c := NewCollector(nil)
	s, err := c.Register(record("alice", at(10, 0), endAt(10, 30)))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if s.User != "alice" || !s.EndTime.Equal(at(10, 30)) {
		t.Fatalf("unexpected session %v", s)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestRegisterCompletesOpenSession(t *testing.T) {
	c := NewCollector(nil)
	if _, err := c.Register(record("alice", at(10, 0), nil)); err != nil {
		t.Fatal(err)
	}
	s, err := c.Register(record("alice", at(10, 0), endAt(11, 0)))
	if err != nil {
		t.Fatal(err)
	}
	if s.Open() || !s.EndTime.Equal(at(11, 0)) {
		t.Fatalf("expected completed session, got %v", s)
	}
	if got := c.GetStats().SessionsCompleted; got != 1 {
		t.Fatalf("SessionsCompleted = %d, want 1", got)
	}
}

func TestRegisterDiscardsPartialAfterComplete(t *testing.T) {
	c := NewCollector(nil)
	if _, err := c.Register(record("alice", at(10, 0), endAt(11, 0))); err != nil {
		t.Fatal(err)
	}
	s, err := c.Register(record("alice", at(10, 0), nil))
	if err != nil {
		t.Fatal(err)
	}
	if s.Open() {
		t.Fatal("partial record replaced a complete one")
	}
	if got := c.GetStats().PartialsDiscarded; got != 1 {
		t.Fatalf("PartialsDiscarded = %d, want 1", got)
	}
}

func TestRegisterDuplicateIsNoop(t *testing.T) {
	c := NewCollector(nil)
	r := record("alice", at(10, 0), endAt(11, 0))
	if _, err := c.Register(r); err != nil {
		t.Fatal(err)
	}
	before := c.Sessions()
	if _, err := c.Register(r); err != nil {
		t.Fatalf("duplicate register: %v", err)
	}
	if !reflect.DeepEqual(before, c.Sessions()) {
		t.Fatal("registry changed after registering an identical record")
	}
	if got := c.GetStats().Duplicates; got != 1 {
		t.Fatalf("Duplicates = %d, want 1", got)
	}
}

func TestRegisterConflictIsOrderIndependent(t *testing.T) {
	a := record("alice", at(10, 0), endAt(11, 0))
	b := record("alice", at(10, 0), endAt(11, 5))

	var messages []string
	for _, order := range [][]models.Record{{a, b}, {b, a}} {
		c := NewCollector(nil)
		if _, err := c.Register(order[0]); err != nil {
			t.Fatal(err)
		}
		_, err := c.Register(order[1])
		var conflict *DataIntegrityError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected DataIntegrityError, got %v", err)
		}
		messages = append(messages, err.Error())
	}
	if messages[0] != messages[1] {
		t.Fatalf("conflict message depends on order:\n%s\n%s", messages[0], messages[1])
	}
}

func TestRegisterConflictSurvivesOpenRecordInBetween(t *testing.T) {
	records := []models.Record{
		record("alice", at(10, 0), nil),
		record("alice", at(10, 0), endAt(11, 0)),
		record("alice", at(10, 0), endAt(12, 0)),
	}
	perms := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, p := range perms {
		c := NewCollector(nil)
		var ordered []models.Record
		for _, i := range p {
			ordered = append(ordered, records[i])
		}
		err := c.RegisterAll(ordered)
		var conflict *DataIntegrityError
		if !errors.As(err, &conflict) {
			t.Fatalf("order %v: expected DataIntegrityError, got %v", p, err)
		}
	}
}

func TestRegisterIsOrderIndependent(t *testing.T) {
	records := []models.Record{
		record("alice", at(10, 0), nil),
		record("alice", at(10, 0), endAt(11, 0)),
		record("bob", at(9, 0), endAt(9, 30)),
		record("bob", at(9, 0), endAt(9, 30)),
		record("carol", at(12, 0), nil),
	}

	forward := NewCollector(nil)
	if err := forward.RegisterAll(records); err != nil {
		t.Fatal(err)
	}
	backward := NewCollector(nil)
	for i := len(records) - 1; i >= 0; i-- {
		if _, err := backward.Register(records[i]); err != nil {
			t.Fatal(err)
		}
	}
	if !reflect.DeepEqual(forward.Sessions(), backward.Sessions()) {
		t.Fatalf("registries differ:\n%v\n%v", forward.Sessions(), backward.Sessions())
	}
}

func TestRegisterRejectsInvertedInterval(t *testing.T) {
	c := NewCollector(nil)
	_, err := c.Register(record("alice", at(10, 0), endAt(9, 0)))
	var invalid *InvalidIntervalError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidIntervalError, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("invalid record was registered")
	}
}

func TestSessionsForUser(t *testing.T) {
	c := NewCollector(nil)
	err := c.RegisterAll([]models.Record{
		record("bob", at(11, 0), endAt(12, 0)),
		record("alice", at(10, 0), endAt(11, 0)),
		record("bob", at(9, 0), nil),
		record("bob", at(9, 0), endAt(9, 45)),
	})
	if err != nil {
		t.Fatal(err)
	}

	bob := c.SessionsForUser("bob")
	if len(bob) != 2 {
		t.Fatalf("got %d sessions for bob, want 2", len(bob))
	}
	if !bob[0].StartTime.Equal(at(9, 0)) || bob[0].Open() {
		t.Fatalf("first bob session = %v, want completed 09:00 session", bob[0])
	}
	if got := c.Users(); !reflect.DeepEqual(got, []string{"alice", "bob"}) {
		t.Fatalf("Users() = %v", got)
	}
	if len(c.SessionsForUser("nobody")) != 0 {
		t.Fatal("expected no sessions for unknown user")
	}
}

func TestRegisterMergesAcrossParsedZones(t *testing.T) {
	const layout = "2006-01-02T15:04:05Z07:00"
	parse := func(s string) time.Time {
		ts, err := time.Parse(layout, s)
		if err != nil {
			t.Fatal(err)
		}
		return ts
	}
	parseEnd := func(s string) *time.Time {
		ts := parse(s)
		return &ts
	}

	// Each parse of a half-hour offset yields its own *time.Location.
	first := record("alice", parse("2024-03-04T10:00:00+05:30"), parseEnd("2024-03-04T11:00:00+05:30"))
	second := record("alice", parse("2024-03-04T10:00:00+05:30"), parseEnd("2024-03-04T12:00:00+05:30"))
	open := record("alice", parse("2024-03-04T04:30:00Z"), nil)

	c := NewCollector(nil)
	if _, err := c.Register(open); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Register(first); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1: the same instant in two zones is one session", c.Len())
	}
	if got := c.GetStats().SessionsCompleted; got != 1 {
		t.Fatalf("SessionsCompleted = %d, want 1", got)
	}

	_, err := c.Register(second)
	var conflict *DataIntegrityError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected DataIntegrityError, got %v", err)
	}

	if _, ok := c.Lookup(first.Key()); !ok {
		t.Fatal("Lookup by a key parsed in another zone failed")
	}
}

package models

import (
	"testing"
	"time"
)

func TestSessionDuration(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	s := NewSession(Record{User: "alice", Server: "CTXSRV01", Environment: "MonacoDG", StartTime: start, EndTime: &end})
	d, ok := s.Duration()
	if !ok || d != 90*time.Minute {
		t.Fatalf("Duration() = %v, %v; want 90m, true", d, ok)
	}

	open := NewSession(Record{User: "alice", Server: "CTXSRV01", Environment: "MonacoDG", StartTime: start})
	if _, ok := open.Duration(); ok {
		t.Fatal("open session should have no duration")
	}
	if !open.Open() {
		t.Fatal("expected open session")
	}
}

func TestNewSessionCopiesEnd(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r := Record{User: "bob", Server: "CTXSRV02", Environment: "MonacoSim", StartTime: start, EndTime: &end}

	s := NewSession(r)
	end = end.Add(time.Hour)
	if !s.EndTime.Equal(start.Add(time.Hour)) {
		t.Fatalf("session end changed with record: %v", s.EndTime)
	}
}

func TestSessionKeyLess(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	a := SessionKey{User: "a", Server: "s1", Environment: "e", StartTime: t0}
	b := SessionKey{User: "b", Server: "s1", Environment: "e", StartTime: t0}
	c := SessionKey{User: "a", Server: "s1", Environment: "e", StartTime: t0.Add(time.Minute)}

	if !a.Less(b) || b.Less(a) {
		t.Fatal("expected user to break start time ties")
	}
	if !b.Less(c) {
		t.Fatal("expected earlier start to sort first")
	}
	if a.Less(a) {
		t.Fatal("key must not be less than itself")
	}
}

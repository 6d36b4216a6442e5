package db

import (
	"testing"

	"github.com/vainnor/session-report/config"
)

func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "reporter",
		Password: "s3cr3t pass",
		Name:     "citrix",
		SSLMode:  "disable",
	}
	want := `host=db.internal port=5432 user=reporter password='s3cr3t pass' dbname=citrix sslmode=disable`
	if got := ConnString(cfg); got != want {
		t.Fatalf("ConnString() = %q, want %q", got, want)
	}
}

func TestConnStringOmitsEmpty(t *testing.T) {
	got := ConnString(config.DatabaseConfig{Host: "localhost", Port: 5432})
	if want := "host=localhost port=5432"; got != want {
		t.Fatalf("ConnString() = %q, want %q", got, want)
	}
}

func TestQuoteValue(t *testing.T) {
	cases := map[string]string{
		"plain":  "plain",
		"":       "''",
		"it's":   `'it\'s'`,
		`a\b`:    `'a\\b'`,
		"two pa": "'two pa'",
	}
	for in, want := range cases {
		if got := quoteValue(in); got != want {
			t.Errorf("quoteValue(%q) = %q, want %q", in, got, want)
		}
	}
}

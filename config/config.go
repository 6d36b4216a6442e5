// Package config loads settings for the session report.
//
// Settings come from three places, later ones winning: built-in defaults, an
// optional YAML file (--config or SESSION_REPORT_CONFIG), and environment
// variables, which may be provided through a .env file. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultTimeLayout matches timestamps such as "03/14/2024 09:05:00 PM".
const DefaultTimeLayout = "01/02/2006 03:04:05 PM"

// Input formats understood by the ingest layer.
const (
	FormatXLSX     = "xlsx"
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatPostgres = "postgres"
)

type Config struct {
	Input        InputConfig         `yaml:"input"`
	Timeline     TimelineConfig      `yaml:"timeline"`
	Environments []EnvironmentConfig `yaml:"environments"`
	Output       OutputConfig        `yaml:"output"`
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
}

// InputConfig describes where session records come from.
type InputConfig struct {
	// Path is a spreadsheet or CSV file, or an http(s) URL for json.
	Path string `yaml:"path"`
	// Format is one of xlsx, csv, json or postgres. Empty means detect from
	// the path extension.
	Format string `yaml:"format"`
	// Sheet selects a worksheet; empty means the first one.
	Sheet string `yaml:"sheet"`
	// TimeLayout is the Go layout of start and end timestamps.
	TimeLayout string `yaml:"time_layout"`
}

type TimelineConfig struct {
	// SlotCapacity is the number of rows drawn per server.
	SlotCapacity int `yaml:"slot_capacity"`
	// AutoGrow retries slot allocation with the observed peak when a server
	// runs out of rows.
	AutoGrow bool `yaml:"auto_grow"`
	// OffenderThreshold flags users holding more sessions than this at once.
	OffenderThreshold int `yaml:"offender_threshold"`
	// OpenPadding is how far past the last recorded end open sessions run.
	OpenPadding time.Duration `yaml:"open_padding"`
}

// EnvironmentConfig names an environment and the color it is drawn in.
type EnvironmentConfig struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

type OutputConfig struct {
	Path  string `yaml:"path"`
	Title string `yaml:"title"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Table    string `yaml:"table"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Input: InputConfig{
			TimeLayout: DefaultTimeLayout,
		},
		Timeline: TimelineConfig{
			SlotCapacity:      5,
			OffenderThreshold: 3,
			OpenPadding:       time.Minute,
		},
		Environments: []EnvironmentConfig{
			{Name: "MonacoDG", Color: "#ff0000"},
			{Name: "MonacoMRL", Color: "#0000ff"},
			{Name: "MonacoSim", Color: "#00ff00"},
			{Name: "MonacoDev", Color: "#ff00ff"},
		},
		Output: OutputConfig{
			Path:  "output.html",
			Title: "Session occupancy",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Table:   "session_log",
		},
	}
}

// LoadEnv reads .env files into the process environment. Missing files are
// not an error.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load returns the defaults overlaid with the YAML file at path, if any, and
// then with environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("SESSION_REPORT_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		c.Database.Port = port
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("DB_SSLMODE"); v != "" {
		c.Database.SSLMode = v
	}
	if v := os.Getenv("SESSION_REPORT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	return nil
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Timeline.SlotCapacity < 1 {
		return fmt.Errorf("timeline.slot_capacity must be at least 1, got %d", c.Timeline.SlotCapacity)
	}
	if c.Timeline.OffenderThreshold < 1 {
		return fmt.Errorf("timeline.offender_threshold must be at least 1, got %d", c.Timeline.OffenderThreshold)
	}
	if c.Timeline.OpenPadding <= 0 {
		return fmt.Errorf("timeline.open_padding must be positive, got %s", c.Timeline.OpenPadding)
	}
	if c.Input.TimeLayout == "" {
		return errors.New("input.time_layout is required")
	}
	switch c.Input.Format {
	case "", FormatXLSX, FormatCSV, FormatJSON, FormatPostgres:
	default:
		return fmt.Errorf("unknown input.format %q", c.Input.Format)
	}
	seen := make(map[string]bool, len(c.Environments))
	for _, env := range c.Environments {
		if env.Name == "" {
			return errors.New("environment with empty name")
		}
		if seen[env.Name] {
			return fmt.Errorf("environment %q listed twice", env.Name)
		}
		seen[env.Name] = true
	}
	return nil
}

// EnvironmentNames returns the configured environments in order.
func (c *Config) EnvironmentNames() []string {
	names := make([]string, 0, len(c.Environments))
	for _, env := range c.Environments {
		names = append(names, env.Name)
	}
	return names
}

// Colors maps environment names to their colors.
func (c *Config) Colors() map[string]string {
	colors := make(map[string]string, len(c.Environments))
	for _, env := range c.Environments {
		colors[env.Name] = env.Color
	}
	return colors
}

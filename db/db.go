package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vainnor/session-report/config"
)

// DBClient reads and writes the session log table in Postgres.
type DBClient struct {
	DB     *sql.DB
	table  string
	logger *zap.Logger
}

// ConnString builds a lib/pq connection string from cfg.
func ConnString(cfg config.DatabaseConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", quoteValue(cfg.Host)),
		fmt.Sprintf("port=%d", cfg.Port),
	}
	if cfg.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", quoteValue(cfg.User)))
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", quoteValue(cfg.Password)))
	}
	if cfg.Name != "" {
		parts = append(parts, fmt.Sprintf("dbname=%s", quoteValue(cfg.Name)))
	}
	if cfg.SSLMode != "" {
		parts = append(parts, fmt.Sprintf("sslmode=%s", quoteValue(cfg.SSLMode)))
	}
	return strings.Join(parts, " ")
}

// quoteValue quotes a keyword/value connection parameter when needed.
func quoteValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// InitDB opens and pings the database and makes sure the session log table
// exists.
func InitDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*DBClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	c := &DBClient{DB: db, table: cfg.Table, logger: logger}
	if err = c.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("table", cfg.Table))
	return c, nil
}

func (c *DBClient) createTables(ctx context.Context) error {
	table := pq.QuoteIdentifier(c.table)
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			server VARCHAR(255) NOT NULL,
			environment VARCHAR(255) NOT NULL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			imported_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pq.QuoteIdentifier("idx_"+c.table+"_start") +
			` ON ` + table + ` (start_time)`,
	}

	for _, query := range queries {
		if _, err := c.DB.ExecContext(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (c *DBClient) Close() {
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.logger.Error("Error closing database connection", zap.Error(err))
		}
	}
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/vainnor/session-report/models"
)

// LoadRecords returns every row of the session log table. Rows come back in
// insertion order, duplicates included; merging is the registry's job.
func (c *DBClient) LoadRecords(ctx context.Context) ([]models.Record, error) {
	query := `SELECT username, server, environment, start_time, end_time FROM ` +
		pq.QuoteIdentifier(c.table) + ` ORDER BY id`
	rows, err := c.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying session log: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var (
			rec models.Record
			end sql.NullTime
		)
		if err := rows.Scan(&rec.User, &rec.Server, &rec.Environment, &rec.StartTime, &end); err != nil {
			return nil, fmt.Errorf("scanning session log: %w", err)
		}
		rec.StartTime = rec.StartTime.UTC()
		if end.Valid {
			t := end.Time.UTC()
			rec.EndTime = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading session log: %w", err)
	}

	c.logger.Info("Loaded session records from database", zap.Int("records", len(records)))
	return records, nil
}

// ImportRecords bulk loads records into the session log table in one
// transaction.
func (c *DBClient) ImportRecords(ctx context.Context, records []models.Record) error {
	tx, err := c.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(c.table,
		"username", "server", "environment", "start_time", "end_time"))
	if err != nil {
		return fmt.Errorf("preparing copy: %w", err)
	}

	for _, rec := range records {
		var end interface{}
		if rec.EndTime != nil {
			end = *rec.EndTime
		}
		if _, err := stmt.ExecContext(ctx, rec.User, rec.Server, rec.Environment, rec.StartTime, end); err != nil {
			stmt.Close()
			return fmt.Errorf("copying session %s: %w", rec.Key(), err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flushing copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.logger.Info("Imported session records",
		zap.Int("records", len(records)),
		zap.Time("imported_at", time.Now()))
	return nil
}

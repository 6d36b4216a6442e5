package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/vainnor/session-report/models"
)

// jsonRecord is one element of a JSON session export.
type jsonRecord struct {
	User        string `json:"user"`
	Server      string `json:"server"`
	Environment string `json:"environment"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// FetchRecords fetches a JSON array of session records from url.
func (l *Loader) FetchRecords(ctx context.Context, url string) ([]models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		l.logger.Error("Error fetching session records", zap.String("url", url), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: bad status: %s", url, resp.Status)
	}

	records, err := l.DecodeJSON(resp.Body)
	if err != nil {
		l.logger.Error("Error decoding session records", zap.String("url", url), zap.Error(err))
		return nil, err
	}

	l.logger.Info("Fetched session records", zap.String("url", url), zap.Int("records", len(records)))
	return records, nil
}

// DecodeJSON reads a JSON array of session records. Timestamps use the
// parser's layout like every other source.
func (l *Loader) DecodeJSON(r io.Reader) ([]models.Record, error) {
	var raw []jsonRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}

	records := make([]models.Record, 0, len(raw))
	for i, jr := range raw {
		rec, ok, err := l.parser.ParseRow(i+1, []string{jr.User, jr.Server, jr.Environment, jr.StartTime, jr.EndTime})
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

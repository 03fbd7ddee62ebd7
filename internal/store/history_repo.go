package store

import (
	"context"
	"fmt"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

// StatusSample is one recorded set of backend counters.
type StatusSample struct {
	Counts     core.StatusCounts
	RecordedAt time.Time
}

// RecordStatusSample appends one sample and prunes the table down to the
// retention window. Implements core.HistorySink.
func (s *Store) RecordStatusSample(ctx context.Context, counts core.StatusCounts, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO status_history (total, pending, queued, sending, sent, failed, skipped, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, counts.Total, counts.Pending, counts.Queued, counts.Sending, counts.Sent, counts.Failed, counts.Skipped,
		at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert status sample: %w", err)
	}
	if s.HistoryKeep > 0 {
		if _, err := s.DB.ExecContext(ctx, `
			DELETE FROM status_history
			WHERE id NOT IN (SELECT id FROM status_history ORDER BY id DESC LIMIT ?)
		`, s.HistoryKeep); err != nil {
			return fmt.Errorf("prune status history: %w", err)
		}
	}
	return nil
}

// RecentStatusSamples returns up to limit samples, newest first.
func (s *Store) RecentStatusSamples(ctx context.Context, limit int) ([]StatusSample, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT total, pending, queued, sending, sent, failed, skipped, recorded_at
		FROM status_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()
	var samples []StatusSample
	for rows.Next() {
		var sample StatusSample
		var recordedAt string
		if err := rows.Scan(&sample.Counts.Total, &sample.Counts.Pending, &sample.Counts.Queued,
			&sample.Counts.Sending, &sample.Counts.Sent, &sample.Counts.Failed, &sample.Counts.Skipped,
			&recordedAt); err != nil {
			return nil, fmt.Errorf("scan status sample: %w", err)
		}
		parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at: %w", err)
		}
		sample.RecordedAt = parsed
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

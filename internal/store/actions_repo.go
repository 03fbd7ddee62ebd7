package store

import (
	"context"
	"fmt"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
)

// RecordAction appends one audit entry. Implements core.ActionRecorder.
func (s *Store) RecordAction(ctx context.Context, rec core.ActionRecord) error {
	ok := 0
	if rec.OK {
		ok = 1
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO action_log (id, action, detail, ok, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Action, rec.Detail, ok, rec.Message, rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert action record: %w", err)
	}
	return nil
}

// RecentActions returns up to limit audit entries, newest first.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]core.ActionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, action, detail, ok, message, created_at
		FROM action_log
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query action log: %w", err)
	}
	defer rows.Close()
	var recs []core.ActionRecord
	for rows.Next() {
		var rec core.ActionRecord
		var ok int
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.Detail, &ok, &rec.Message, &createdAt); err != nil {
			return nil, fmt.Errorf("scan action record: %w", err)
		}
		rec.OK = ok == 1
		parsed, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		rec.CreatedAt = parsed
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

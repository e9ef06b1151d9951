package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fmueller/meetingagent/internal/pipeline"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS meeting_runs (
	meeting_id     TEXT PRIMARY KEY,
	audio_path     TEXT NOT NULL,
	status         TEXT NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	processing_ms  BIGINT NOT NULL,
	action_items   INTEGER NOT NULL DEFAULT 0,
	events         INTEGER NOT NULL DEFAULT 0,
	errors         INTEGER NOT NULL DEFAULT 0,
	result         JSONB NOT NULL
)`

type PostgresStore struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := NewPostgresStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create meeting_runs table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Record(ctx context.Context, result *pipeline.Result) error {
	doc, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode meeting %s: %w", result.MeetingID, err)
	}
	summary := Summarize(result)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meeting_runs (meeting_id, audio_path, status, started_at, processing_ms, action_items, events, errors, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (meeting_id) DO UPDATE
		SET audio_path = EXCLUDED.audio_path,
		    status = EXCLUDED.status,
		    started_at = EXCLUDED.started_at,
		    processing_ms = EXCLUDED.processing_ms,
		    action_items = EXCLUDED.action_items,
		    events = EXCLUDED.events,
		    errors = EXCLUDED.errors,
		    result = EXCLUDED.result
	`,
		summary.MeetingID,
		summary.AudioPath,
		string(summary.Status),
		summary.StartedAt,
		summary.ProcessingTime.Milliseconds(),
		summary.ActionItems,
		summary.Events,
		summary.Errors,
		doc,
	)
	if err != nil {
		return fmt.Errorf("record meeting %s: %w", result.MeetingID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, meetingID string) (*pipeline.Result, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, `SELECT result FROM meeting_runs WHERE meeting_id = $1`, meetingID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, meetingID)
	}
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", meetingID, err)
	}

	var result pipeline.Result
	if err := json.Unmarshal(doc, &result); err != nil {
		return nil, fmt.Errorf("decode meeting %s: %w", meetingID, err)
	}
	return &result, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT meeting_id, audio_path, status, started_at, processing_ms, action_items, events, errors
		FROM meeting_runs
		ORDER BY started_at DESC, meeting_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s      Summary
			status string
			ms     int64
		)
		if err := rows.Scan(&s.MeetingID, &s.AudioPath, &status, &s.StartedAt, &ms, &s.ActionItems, &s.Events, &s.Errors); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		s.Status = pipeline.Status(status)
		s.ProcessingTime = time.Duration(ms) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

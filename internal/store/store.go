// Package store keeps a history of processed meetings.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/fmueller/meetingagent/internal/pipeline"
)

var ErrNotFound = errors.New("meeting not found")

// Summary is the one-line view of a run used by the history listing.
type Summary struct {
	MeetingID      string          `json:"meeting_id"`
	AudioPath      string          `json:"audio_path"`
	Status         pipeline.Status `json:"status"`
	StartedAt      time.Time       `json:"started_at"`
	ProcessingTime time.Duration   `json:"processing_time"`
	ActionItems    int             `json:"action_items"`
	Events         int             `json:"events"`
	Errors         int             `json:"errors"`
}

type Store interface {
	Record(ctx context.Context, result *pipeline.Result) error
	Get(ctx context.Context, meetingID string) (*pipeline.Result, error)
	List(ctx context.Context, limit int) ([]Summary, error)
	Close() error
}

func Summarize(r *pipeline.Result) Summary {
	s := Summary{
		MeetingID:      r.MeetingID,
		AudioPath:      r.AudioPath,
		Status:         r.Status,
		StartedAt:      r.StartedAt,
		ProcessingTime: r.ProcessingTime,
		Events:         len(r.CalendarEvents),
		Errors:         len(r.Errors),
	}
	if r.Minutes != nil {
		s.ActionItems = len(r.Minutes.ActionItems)
	}
	return s
}

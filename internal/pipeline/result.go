package pipeline

import (
	"errors"
	"slices"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
	"go.uber.org/multierr"
)

// Status is the lifecycle state of one run. Statuses only move forward.
type Status string

const (
	StatusPending           Status = "pending"
	StatusTranscribing      Status = "transcribing"
	StatusResolvingSpeakers Status = "resolving_speakers"
	StatusExtractingMinutes Status = "extracting_minutes"
	StatusCreatingEvents    Status = "creating_events"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

var statusOrder = []Status{
	StatusPending,
	StatusTranscribing,
	StatusResolvingSpeakers,
	StatusExtractingMinutes,
	StatusCreatingEvents,
	StatusCompleted,
	StatusFailed,
}

func (s Status) rank() int {
	return slices.Index(statusOrder, s)
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type StageError struct {
	Stage   meeting.Stage `json:"stage"`
	Message string        `json:"message"`

	err error
}

func (e StageError) Error() string {
	return string(e.Stage) + ": " + e.Message
}

func (e StageError) Unwrap() error { return e.err }

// Result is the record of one run. The orchestrator stops touching it once
// the status is terminal.
type Result struct {
	MeetingID       string                   `json:"meeting_id"`
	AudioPath       string                   `json:"audio_path"`
	Status          Status                   `json:"status"`
	Transcript      *meeting.Transcript      `json:"transcript,omitempty"`
	Speakers        meeting.SpeakerIdentity  `json:"speakers"`
	Minutes         *meeting.Minutes         `json:"minutes,omitempty"`
	CandidateEvents []meeting.CandidateEvent `json:"candidate_events,omitempty"`
	CalendarEvents  []meeting.CalendarEvent  `json:"calendar_events,omitempty"`
	Errors          []StageError             `json:"errors,omitempty"`
	StartedAt       time.Time                `json:"started_at"`
	ProcessingTime  time.Duration            `json:"processing_time"`
}

// advance moves the run to next if that is a forward transition.
func (r *Result) advance(next Status) bool {
	if r.Status.Terminal() || next.rank() <= r.Status.rank() {
		return false
	}
	r.Status = next
	return true
}

func (r *Result) record(stage meeting.Stage, err error) {
	if err == nil || r.Status.Terminal() {
		return
	}
	r.Errors = append(r.Errors, StageError{Stage: stage, Message: err.Error(), err: err})
}

func (r *Result) Failed() bool {
	return r.Status == StatusFailed
}

// Err combines every recorded stage error, or returns nil for a clean run.
func (r *Result) Err() error {
	var combined error
	for _, e := range r.Errors {
		combined = multierr.Append(combined, e)
	}
	return combined
}

// ErrorsFor returns the stage errors of a single stage.
func (r *Result) ErrorsFor(stage meeting.Stage) []StageError {
	var out []StageError
	for _, e := range r.Errors {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// CalendarErrors returns the per-candidate calendar failures of the run.
func (r *Result) CalendarErrors() []*meeting.CalendarError {
	var out []*meeting.CalendarError
	for _, e := range r.ErrorsFor(meeting.StageCreatingEvents) {
		var calErr *meeting.CalendarError
		if errors.As(e, &calErr) {
			out = append(out, calErr)
		}
	}
	return out
}

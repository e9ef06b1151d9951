package meeting

import (
	"context"
	"errors"
	"fmt"
)

// Stage names one phase of the processing pipeline.
type Stage string

const (
	StageTranscribing      Stage = "transcribing"
	StageResolvingSpeakers Stage = "resolving_speakers"
	StageExtractingMinutes Stage = "extracting_minutes"
	StageCreatingEvents    Stage = "creating_events"
)

type TranscriptionErrorKind string

const (
	TranscriptionUnreadable  TranscriptionErrorKind = "unreadable"
	TranscriptionUnsupported TranscriptionErrorKind = "unsupported_format"
	TranscriptionAPI         TranscriptionErrorKind = "api"
	TranscriptionTimeout     TranscriptionErrorKind = "timeout"
)

// TranscriptionError is fatal to a run: no later stage can work without a
// transcript.
type TranscriptionError struct {
	Kind TranscriptionErrorKind
	Path string
	Err  error
}

func NewTranscriptionError(kind TranscriptionErrorKind, path string, err error) *TranscriptionError {
	if kind == TranscriptionAPI && errors.Is(err, context.DeadlineExceeded) {
		kind = TranscriptionTimeout
	}
	return &TranscriptionError{Kind: kind, Path: path, Err: err}
}

func (e *TranscriptionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("transcription failed (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("transcription of %s failed (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

func (e *TranscriptionError) Stage() Stage { return StageTranscribing }

// Retryable reports whether another attempt may succeed.
func (e *TranscriptionError) Retryable() bool {
	return e.Kind == TranscriptionAPI || e.Kind == TranscriptionTimeout
}

// SpeakerResolutionError means the resolver degraded to a heuristic-only or
// fully anonymous mapping. The mapping returned alongside it is still usable.
type SpeakerResolutionError struct {
	Err error
}

func (e *SpeakerResolutionError) Error() string {
	return fmt.Sprintf("speaker resolution degraded to heuristic mapping: %v", e.Err)
}

func (e *SpeakerResolutionError) Unwrap() error { return e.Err }

func (e *SpeakerResolutionError) Stage() Stage { return StageResolvingSpeakers }

// ExtractionError means no minutes could be produced.
type ExtractionError struct {
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("minutes extraction failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Stage() Stage { return StageExtractingMinutes }

type CalendarErrorKind string

const (
	CalendarUnresolvedStart CalendarErrorKind = "unresolved_start"
	CalendarMalformedTime   CalendarErrorKind = "malformed_time"
	CalendarAuth            CalendarErrorKind = "auth"
	CalendarService         CalendarErrorKind = "service"
	CalendarTimeout         CalendarErrorKind = "timeout"
)

// CalendarError belongs to exactly one candidate event.
type CalendarError struct {
	Index int
	Title string
	Kind  CalendarErrorKind
	Err   error
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("calendar event %d (%q) not created (%s): %v", e.Index+1, e.Title, e.Kind, e.Err)
}

func (e *CalendarError) Unwrap() error { return e.Err }

func (e *CalendarError) Stage() Stage { return StageCreatingEvents }

// StageOf returns the pipeline stage an error belongs to, if it is one of
// the stage error types.
func StageOf(err error) (Stage, bool) {
	var staged interface{ Stage() Stage }
	if errors.As(err, &staged) {
		return staged.Stage(), true
	}
	return "", false
}

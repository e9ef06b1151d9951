// Package pipeline sequences transcription, speaker resolution, minutes
// extraction and calendar creation for one meeting recording.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fmueller/meetingagent/internal/calendar"
	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/transcribe"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultCallTimeout  = 10 * time.Minute
	DefaultRetryBackoff = 5 * time.Second
)

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*meeting.Transcript, error)
}

type SpeakerResolver interface {
	Resolve(ctx context.Context, t *meeting.Transcript) (meeting.SpeakerIdentity, error)
}

type MinutesExtractor interface {
	Extract(ctx context.Context, t *meeting.Transcript, identity meeting.SpeakerIdentity) (*meeting.Minutes, []meeting.CandidateEvent, error)
}

type EventCreator interface {
	Create(ctx context.Context, candidates []meeting.CandidateEvent) []calendar.Outcome
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, result *Result) error
}

type Request struct {
	AudioPath string
	MeetingID string
	// Until stops the run after the named stage. Empty runs every stage.
	Until meeting.Stage
}

type Orchestrator struct {
	Transcriber Transcriber
	Speakers    SpeakerResolver
	Minutes     MinutesExtractor
	// Calendar may be nil when event creation is disabled; candidates are
	// still reported.
	Calendar EventCreator
	History  Recorder

	CallTimeout          time.Duration
	TranscriptionRetries int
	RetryBackoff         time.Duration

	Logger  *zap.Logger
	OnStage func(meetingID string, status Status)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func (o *Orchestrator) log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) clock() time.Time {
	if o.now == nil {
		return time.Now()
	}
	return o.now()
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.CallTimeout <= 0 {
		return DefaultCallTimeout
	}
	return o.CallTimeout
}

// NewMeetingID returns an id that sorts by creation time.
func NewMeetingID(now time.Time) string {
	return fmt.Sprintf("meeting_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// Run processes one recording. It always returns a finalized result; stage
// failures are recorded on it rather than returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (result *Result) {
	started := o.clock()
	result = &Result{
		MeetingID: req.MeetingID,
		AudioPath: req.AudioPath,
		Status:    StatusPending,
		StartedAt: started,
	}
	if result.MeetingID == "" {
		result.MeetingID = NewMeetingID(started)
	}
	logger := o.log().With(zap.String("meeting_id", result.MeetingID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			stage := meeting.Stage(result.Status)
			if result.Status == StatusPending {
				stage = meeting.StageTranscribing
			}
			result.record(stage, fmt.Errorf("internal error: %v", r))
			o.transition(result, StatusFailed)
		}
		result.ProcessingTime = o.clock().Sub(started)
		o.persist(ctx, result, logger)
	}()

	logger.Info("processing meeting", zap.String("audio", req.AudioPath))

	o.transition(result, StatusTranscribing)
	transcript, err := o.transcribe(ctx, req.AudioPath, logger)
	if err != nil {
		result.record(meeting.StageTranscribing, err)
		o.transition(result, StatusFailed)
		logger.Error("transcription failed", zap.Error(err))
		return result
	}
	transcript.MeetingID = result.MeetingID
	result.Transcript = transcript
	if req.Until == meeting.StageTranscribing {
		return o.complete(result, logger)
	}

	o.transition(result, StatusResolvingSpeakers)
	if o.Speakers != nil {
		err := safeStage(logger, meeting.StageResolvingSpeakers, func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout())
			defer cancel()
			identity, err := o.Speakers.Resolve(callCtx, transcript)
			result.Speakers = identity
			return err
		})
		result.record(meeting.StageResolvingSpeakers, err)
	} else {
		result.record(meeting.StageResolvingSpeakers, &meeting.SpeakerResolutionError{Err: errors.New("speaker resolution disabled")})
	}
	if result.Speakers.Empty() {
		result.Speakers = anonymous(transcript)
	}
	if req.Until == meeting.StageResolvingSpeakers {
		return o.complete(result, logger)
	}

	o.transition(result, StatusExtractingMinutes)
	if o.Minutes != nil {
		err := safeStage(logger, meeting.StageExtractingMinutes, func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.callTimeout())
			defer cancel()
			minutes, candidates, err := o.Minutes.Extract(callCtx, transcript, result.Speakers)
			if err != nil {
				return err
			}
			result.Minutes = minutes
			result.CandidateEvents = candidates
			return nil
		})
		result.record(meeting.StageExtractingMinutes, err)
	} else {
		result.record(meeting.StageExtractingMinutes, &meeting.ExtractionError{Err: errors.New("minutes extraction disabled")})
	}
	if req.Until == meeting.StageExtractingMinutes {
		return o.complete(result, logger)
	}

	o.transition(result, StatusCreatingEvents)
	switch {
	case len(result.CandidateEvents) == 0:
		logger.Info("no calendar events to create")
	case o.Calendar == nil:
		logger.Info("calendar disabled; leaving candidate events uncreated", zap.Int("candidates", len(result.CandidateEvents)))
	default:
		var outcomes []calendar.Outcome
		err := safeStage(logger, meeting.StageCreatingEvents, func() error {
			outcomes = o.Calendar.Create(ctx, result.CandidateEvents)
			return nil
		})
		result.record(meeting.StageCreatingEvents, err)
		for _, outcome := range outcomes {
			if outcome.Err != nil {
				result.record(meeting.StageCreatingEvents, outcome.Err)
				continue
			}
			if outcome.Event != nil {
				result.CalendarEvents = append(result.CalendarEvents, *outcome.Event)
			}
		}
	}

	return o.complete(result, logger)
}

// safeStage runs one post-transcription stage and reports a panic in it as
// that stage's error, so the run can continue with what it has.
func safeStage(logger *zap.Logger, stage meeting.Stage, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("stage panicked", zap.String("stage", string(stage)), zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return fn()
}

func (o *Orchestrator) complete(result *Result, logger *zap.Logger) *Result {
	o.transition(result, StatusCompleted)
	logger.Info("meeting processed",
		zap.String("status", string(result.Status)),
		zap.Int("stage_errors", len(result.Errors)),
		zap.Int("calendar_events", len(result.CalendarEvents)),
	)
	return result
}

func (o *Orchestrator) transition(result *Result, next Status) {
	if !result.advance(next) {
		return
	}
	if o.OnStage != nil {
		o.OnStage(result.MeetingID, next)
	}
}

// transcribe retries retryable transcription failures with a linearly
// growing pause between attempts.
func (o *Orchestrator) transcribe(ctx context.Context, audioPath string, logger *zap.Logger) (*meeting.Transcript, error) {
	if o.Transcriber == nil {
		return nil, meeting.NewTranscriptionError(meeting.TranscriptionAPI, audioPath, errors.New("no transcriber configured"))
	}
	backoff := o.RetryBackoff
	if backoff <= 0 {
		backoff = DefaultRetryBackoff
	}
	sleep := o.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 0; ; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout())
		transcript, err := o.Transcriber.Transcribe(callCtx, audioPath)
		cancel()
		if err == nil {
			if transcript == nil {
				return nil, meeting.NewTranscriptionError(meeting.TranscriptionAPI, audioPath, errors.New("transcriber returned no transcript"))
			}
			return transcript, nil
		}

		var terr *meeting.TranscriptionError
		if !errors.As(err, &terr) {
			terr = meeting.NewTranscriptionError(meeting.TranscriptionAPI, audioPath, err)
		}
		if !terr.Retryable() || attempt >= o.TranscriptionRetries || ctx.Err() != nil {
			return nil, terr
		}

		wait := backoff * time.Duration(attempt+1)
		logger.Warn("transcription failed; retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, meeting.NewTranscriptionError(terr.Kind, audioPath, err)
		}
	}
}

func (o *Orchestrator) persist(ctx context.Context, result *Result, logger *zap.Logger) {
	if o.History == nil {
		return
	}
	if err := o.History.Record(context.WithoutCancel(ctx), result); err != nil {
		logger.Warn("failed to record run history", zap.Error(err))
	}
}

// AnalyzeTranscript resolves speakers for a transcript text file written by a
// previous run.
func (o *Orchestrator) AnalyzeTranscript(ctx context.Context, path string) (*meeting.Transcript, meeting.SpeakerIdentity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, meeting.SpeakerIdentity{}, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	transcript, err := transcribe.ParseText(f)
	if err != nil {
		return nil, meeting.SpeakerIdentity{}, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	if o.Speakers == nil {
		return transcript, anonymous(transcript), &meeting.SpeakerResolutionError{Err: errors.New("speaker resolution disabled")}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.callTimeout())
	defer cancel()
	identity, err := o.Speakers.Resolve(callCtx, transcript)
	if identity.Empty() {
		identity = anonymous(transcript)
	}
	return transcript, identity, err
}

func anonymous(t *meeting.Transcript) meeting.SpeakerIdentity {
	labels := t.Labels()
	identity := meeting.SpeakerIdentity{Speakers: make([]meeting.SpeakerName, 0, len(labels))}
	for _, label := range labels {
		identity.Speakers = append(identity.Speakers, meeting.SpeakerName{Label: label, Name: label})
	}
	return identity
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package minutes extracts structured meeting minutes and candidate calendar
// events from a diarized transcript.
package minutes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/llm"
	"github.com/fmueller/meetingagent/internal/meeting"
	"go.uber.org/zap"
)

const (
	DefaultEventThreshold = 0.7
	DefaultMaxPromptChars = 48000
)

type Extractor struct {
	LLM    llm.Client
	Logger *zap.Logger
	// EventThreshold is the minimum model confidence for an explicit event to
	// become a calendar candidate.
	EventThreshold float64
	Location       *time.Location
	Now            func() time.Time
	MaxPromptChars int
}

func (e *Extractor) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func (e *Extractor) now() time.Time {
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	if e.Now == nil {
		return time.Now().In(loc)
	}
	return e.Now().In(loc)
}

func (e *Extractor) threshold() float64 {
	if e.EventThreshold <= 0 {
		return DefaultEventThreshold
	}
	return e.EventThreshold
}

// Extract asks the model for minutes and events. A malformed response is
// retried once with a stricter instruction; after that the failure is a
// *meeting.ExtractionError.
func (e *Extractor) Extract(ctx context.Context, t *meeting.Transcript, identity meeting.SpeakerIdentity) (*meeting.Minutes, []meeting.CandidateEvent, error) {
	if e.LLM == nil {
		return nil, nil, &meeting.ExtractionError{Err: errors.New("no language model configured")}
	}
	if t == nil || len(t.Utterances) == 0 {
		return nil, nil, &meeting.ExtractionError{Err: errors.New("transcript has no utterances")}
	}

	now := e.now()
	logger := e.log()

	var (
		resp    Response
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= 2; attempt++ {
		reason := ""
		if lastErr != nil {
			reason = lastErr.Error()
		}
		text, err := e.LLM.Complete(ctx, e.prompt(t, identity, now, reason))
		if err != nil {
			return nil, nil, &meeting.ExtractionError{Attempts: attempt, Err: fmt.Errorf("model call: %w", err)}
		}
		resp, lastErr = ParseResponse(text, now.Location())
		if lastErr == nil {
			break
		}
		logger.Warn("minutes response rejected", zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	if lastErr != nil {
		return nil, nil, &meeting.ExtractionError{Attempts: attempt - 1, Err: lastErr}
	}

	minutes := &meeting.Minutes{
		Summary:      resp.Summary,
		KeyPoints:    resp.KeyPoints,
		Decisions:    resp.Decisions,
		NextSteps:    resp.NextSteps,
		Participants: participants(t, identity),
	}
	for _, item := range resp.ActionItems {
		item.Owner = displayName(identity, item.Owner)
		minutes.ActionItems = append(minutes.ActionItems, item)
	}

	var events []meeting.CandidateEvent
	for _, ev := range resp.Events {
		if ev.Title == "" {
			continue
		}
		if !ev.Explicit || ev.Confidence < e.threshold() {
			logger.Debug("event demoted to action item",
				zap.String("title", ev.Title),
				zap.Bool("explicit", ev.Explicit),
				zap.Float64("confidence", ev.Confidence),
			)
			minutes.ActionItems = append(minutes.ActionItems, meeting.ActionItem{
				Description: ev.Title,
				DueHint:     ev.When,
			})
			continue
		}

		attendees := make([]string, 0, len(ev.Attendees))
		for _, a := range ev.Attendees {
			attendees = append(attendees, displayName(identity, a))
		}
		events = append(events, meeting.CandidateEvent{
			Title:            ev.Title,
			Description:      ev.Description,
			ProposedStart:    ev.Start,
			ProposedEnd:      ev.End,
			UnparsedEnd:      ev.BadEnd,
			Attendees:        meeting.UniqueNames(attendees),
			Location:         ev.Location,
			SourceConfidence: ev.Confidence,
		})
	}

	logger.Info("minutes extracted",
		zap.Int("key_points", len(minutes.KeyPoints)),
		zap.Int("action_items", len(minutes.ActionItems)),
		zap.Int("decisions", len(minutes.Decisions)),
		zap.Int("events", len(events)),
	)
	return minutes, events, nil
}

// displayName swaps a bare speaker label the model echoed back for the
// resolved name.
func displayName(identity meeting.SpeakerIdentity, name string) string {
	name = strings.TrimSpace(name)
	if _, ok := identity.Get(name); ok {
		return identity.DisplayName(name)
	}
	return name
}

package minutes

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fmueller/meetingagent/internal/llm"
	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/stretchr/testify/require"
)

type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []llm.Prompt
}

func (s *scriptedLLM) Complete(_ context.Context, prompt llm.Prompt) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

var berlin = time.FixedZone("CET", 3600)

func referenceNow() time.Time {
	return time.Date(2026, 3, 2, 10, 0, 0, 0, berlin)
}

func productSync() (*meeting.Transcript, meeting.SpeakerIdentity) {
	tr := &meeting.Transcript{
		Duration: 50 * time.Second,
		Utterances: []meeting.Utterance{
			{Speaker: "A", Start: 0, Text: "Good morning everyone, I'm John Smith and I'll be running today's product sync."},
			{Speaker: "B", Start: 8 * time.Second, Text: "Thanks John. Sarah Johnson here, I lead the design team."},
			{Speaker: "C", Start: 15 * time.Second, Text: "Hi all, I'm Mike Chen from engineering."},
			{Speaker: "A", Start: 22 * time.Second, Text: "Great. Sarah, can you share the spec document with the team?"},
			{Speaker: "B", Start: 30 * time.Second, Text: "Yes, I'll share the spec document by end of day."},
			{Speaker: "C", Start: 38 * time.Second, Text: "We should probably coordinate the design handoff at some point."},
			{Speaker: "A", Start: 45 * time.Second, Text: "Let's hold the sprint review on Thursday at 2pm."},
		},
	}
	identity := meeting.SpeakerIdentity{Speakers: []meeting.SpeakerName{
		{Label: "A", Name: "John Smith", Confidence: meeting.ConfidenceHigh},
		{Label: "B", Name: "Sarah Johnson", Confidence: meeting.ConfidenceHigh},
		{Label: "C", Name: "Mike Chen", Confidence: meeting.ConfidenceLow},
	}}
	return tr, identity
}

const productSyncResponse = `{
  "summary": "Product sync covering the spec document and the sprint review.",
  "key_points": ["Spec document is ready for review", " "],
  "action_items": [{"owner": "Sarah Johnson", "description": "Share the spec document with the team", "due": "end of day"}],
  "decisions": ["Sprint review moves to Thursday"],
  "next_steps": ["Review the spec"],
  "events": [
    {"title": "Sprint review", "description": "Review sprint results", "start": "2026-03-05 14:00", "end": "", "attendees": ["John Smith", "B", "C", "john smith"], "location": "", "explicit": true, "confidence": 0.9},
    {"title": "Design handoff", "description": "", "start": "", "end": "", "attendees": [], "location": "", "explicit": false, "confidence": 0.4},
    {"title": "Retro", "description": "", "start": "2026-03-06 09:00", "end": "2026-03-06 10:00", "attendees": [], "location": "", "explicit": true, "confidence": 0.5}
  ]
}`

func newExtractor(model llm.Client) *Extractor {
	return &Extractor{LLM: model, Location: berlin, Now: referenceNow}
}

func TestExtractProductSync(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{responses: []string{productSyncResponse}}
	tr, identity := productSync()

	minutes, events, err := newExtractor(model).Extract(context.Background(), tr, identity)
	require.NoError(t, err)

	require.Equal(t, []string{"Spec document is ready for review"}, minutes.KeyPoints)
	require.Equal(t, []string{"John Smith", "Sarah Johnson", "C"}, minutes.Participants)
	require.Contains(t, minutes.ActionItems, meeting.ActionItem{
		Owner:       "Sarah Johnson",
		Description: "Share the spec document with the team",
		DueHint:     "end of day",
	})

	require.Len(t, events, 1)
	ev := events[0]
	require.Equal(t, "Sprint review", ev.Title)
	require.True(t, ev.ProposedStart.Equal(time.Date(2026, 3, 5, 14, 0, 0, 0, berlin)))
	require.Nil(t, ev.ProposedEnd)
	require.Equal(t, []string{"John Smith", "Sarah Johnson", "C"}, ev.Attendees)
	require.InDelta(t, 0.9, ev.SourceConfidence, 1e-9)

	for _, e := range events {
		require.NotContains(t, strings.ToLower(e.Title), "handoff")
	}
	require.Contains(t, minutes.ActionItems, meeting.ActionItem{Description: "Design handoff"})
	require.Contains(t, minutes.ActionItems, meeting.ActionItem{Description: "Retro", DueHint: "2026-03-06 09:00"})

	require.Len(t, model.prompts, 1)
	user := model.prompts[0].User
	require.Contains(t, user, "[00:30] Sarah Johnson: Yes, I'll share the spec document by end of day.")
	require.Contains(t, user, "[00:15] C: Hi all")
	require.Contains(t, user, "Reference time: 2026-03-02 10:00 (CET). Today is Monday, March 2, 2026.")
}

func TestExtractEventThresholdIsTunable(t *testing.T) {
	t.Parallel()

	tr, identity := productSync()
	extractor := newExtractor(&scriptedLLM{responses: []string{productSyncResponse}})
	extractor.EventThreshold = 0.5

	_, events, err := extractor.Extract(context.Background(), tr, identity)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "Retro", events[1].Title)
	require.NotNil(t, events[1].ProposedEnd)
}

func TestExtractRetriesOnceWithStricterInstruction(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{responses: []string{`{"summary": "only a summary"}`, productSyncResponse}}
	tr, identity := productSync()

	minutes, _, err := newExtractor(model).Extract(context.Background(), tr, identity)
	require.NoError(t, err)
	require.NotNil(t, minutes)

	require.Len(t, model.prompts, 2)
	require.NotContains(t, model.prompts[0].User, "could not be used")
	require.Contains(t, model.prompts[1].User, "missing required keys: key_points, action_items, decisions, events")
}

func TestExtractFailsAfterSecondMalformedResponse(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{responses: []string{"Sure! Here are the minutes: the team met."}}
	tr, identity := productSync()

	minutes, events, err := newExtractor(model).Extract(context.Background(), tr, identity)
	require.Nil(t, minutes)
	require.Nil(t, events)

	var extErr *meeting.ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, 2, extErr.Attempts)
	require.ErrorIs(t, err, llm.ErrNoJSON)
	require.Len(t, model.prompts, 2)
}

func TestExtractModelUnavailable(t *testing.T) {
	t.Parallel()

	tr, identity := productSync()

	_, _, err := newExtractor(&scriptedLLM{err: errors.New("503")}).Extract(context.Background(), tr, identity)
	var extErr *meeting.ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, 1, extErr.Attempts)

	_, _, err = (&Extractor{}).Extract(context.Background(), tr, identity)
	require.ErrorAs(t, err, &extErr)
}

func TestParseResponseValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "wrong type", body: `{"summary": 3, "key_points": [], "action_items": [], "decisions": [], "events": []}`, wantErr: "decode"},
		{name: "unknown key", body: `{"summary": "", "key_points": [], "action_items": [], "decisions": [], "events": [], "mood": "good"}`, wantErr: "mood"},
		{name: "empty action", body: `{"summary": "", "key_points": [], "action_items": [{"owner": "x"}], "decisions": [], "events": []}`, wantErr: "description is required"},
		{name: "event without confidence", body: `{"summary": "", "key_points": [], "action_items": [], "decisions": [], "events": [{"title": "x", "explicit": true}]}`, wantErr: "explicit and confidence"},
		{name: "confidence out of range", body: `{"summary": "", "key_points": [], "action_items": [], "decisions": [], "events": [{"title": "x", "explicit": true, "confidence": 7}]}`, wantErr: "out of range"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseResponse(tc.body, time.UTC)
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestParseResponseEventTimes(t *testing.T) {
	t.Parallel()

	resp, err := ParseResponse(`{"summary": "s", "key_points": [], "action_items": [], "decisions": [], "events": [
		{"title": "a", "start": "2026-03-05 14:00:30", "end": "2026-03-05T15:00", "explicit": true, "confidence": 1},
		{"title": "b", "start": "next week sometime", "end": "null", "explicit": true, "confidence": 1}
	]}`, berlin)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 5, 14, 0, 30, 0, berlin), resp.Events[0].Start)
	require.Equal(t, time.Date(2026, 3, 5, 15, 0, 0, 0, berlin), *resp.Events[0].End)
	require.True(t, resp.Events[1].Start.IsZero())
	require.Nil(t, resp.Events[1].End)
	require.Equal(t, "next week sometime", resp.Events[1].When)
	require.Empty(t, resp.Events[1].BadEnd)
	require.Empty(t, resp.NextSteps)
}

func TestParseResponseKeepsUnreadableEnd(t *testing.T) {
	t.Parallel()

	resp, err := ParseResponse(`{"summary": "s", "key_points": [], "action_items": [], "decisions": [], "events": [
		{"title": "Retro", "start": "2026-03-05 10:00", "end": "after lunch", "explicit": true, "confidence": 0.9}
	]}`, berlin)
	require.NoError(t, err)
	require.Nil(t, resp.Events[0].End)
	require.Equal(t, "after lunch", resp.Events[0].BadEnd)
}

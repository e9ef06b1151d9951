package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTranscriptLabelsKeepFirstAppearanceOrder(t *testing.T) {
	t.Parallel()

	tr := &Transcript{Utterances: []Utterance{
		{Speaker: "B", Text: "one"},
		{Speaker: "A", Text: "two"},
		{Speaker: "B", Text: "three"},
		{Speaker: "", Text: "noise"},
		{Speaker: "C", Text: "four"},
	}}

	require.Equal(t, []string{"B", "A", "C"}, tr.Labels())
	require.Nil(t, (*Transcript)(nil).Labels())
}

func TestSpeakerIdentityDisplayName(t *testing.T) {
	t.Parallel()

	identity := SpeakerIdentity{Speakers: []SpeakerName{
		{Label: "A", Name: "John Smith", Confidence: ConfidenceHigh},
		{Label: "B", Name: "Sarah", Confidence: ConfidenceLow},
		{Label: "C", Name: UnknownName, Confidence: ConfidenceMedium},
		{Label: "D", Name: "D", Confidence: ConfidenceNone},
	}}

	require.Equal(t, "John Smith", identity.DisplayName("A"))
	require.Equal(t, "B", identity.DisplayName("B"))
	require.Equal(t, "C", identity.DisplayName("C"))
	require.Equal(t, "D", identity.DisplayName("D"))
	require.Equal(t, "Z", identity.DisplayName("Z"))
	require.Equal(t, map[string]string{"A": "John Smith", "B": "Sarah", "C": "C", "D": "D"}, identity.Names())
}

func TestConfidenceJSONRoundTripUsesNames(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(SpeakerName{Label: "A", Name: "Mike Chen", Confidence: ConfidenceMedium})
	require.NoError(t, err)
	require.JSONEq(t, `{"label":"A","name":"Mike Chen","confidence":"medium"}`, string(data))

	var back SpeakerName
	require.NoError(t, json.Unmarshal(data, &back))
	require.Equal(t, ConfidenceMedium, back.Confidence)

	require.Error(t, json.Unmarshal([]byte(`{"confidence":"certain"}`), &back))
}

func TestUniqueNames(t *testing.T) {
	t.Parallel()

	require.Empty(t, UniqueNames(nil))
	require.Equal(t, []string{"Sarah Johnson", "mike chen"}, UniqueNames([]string{" Sarah Johnson", "", "mike chen ", "sarah johnson", "Mike Chen"}))
}

func TestStageOfUnwrapsStageErrors(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("run: %w", &CalendarError{Index: 0, Title: "Sync", Kind: CalendarService, Err: errors.New("503")})
	stage, ok := StageOf(wrapped)
	require.True(t, ok)
	require.Equal(t, StageCreatingEvents, stage)

	_, ok = StageOf(errors.New("plain"))
	require.False(t, ok)
}

func TestTranscriptionErrorDeadlineBecomesTimeout(t *testing.T) {
	t.Parallel()

	err := NewTranscriptionError(TranscriptionAPI, "meeting.wav", fmt.Errorf("poll: %w", context.DeadlineExceeded))
	require.Equal(t, TranscriptionTimeout, err.Kind)
	require.True(t, err.Retryable())
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unreadable := NewTranscriptionError(TranscriptionUnreadable, "missing.wav", errors.New("no such file"))
	require.False(t, unreadable.Retryable())
	require.Contains(t, unreadable.Error(), "missing.wav")
}

func TestFormatClock(t *testing.T) {
	t.Parallel()

	require.Equal(t, "00:00", FormatClock(0))
	require.Equal(t, "01:05", FormatClock(65*time.Second+400*time.Millisecond))
	require.Equal(t, "75:00", FormatClock(75*time.Minute))
}

// Package transcribe turns an audio file into a diarized transcript.
package transcribe

import (
	"context"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
)

// Result is the raw diarized output of a speech-to-text backend. It is also
// the artifact persisted for caching and audit.
type Result struct {
	Provider   string              `json:"provider"`
	JobID      string              `json:"job_id,omitempty"`
	Duration   time.Duration       `json:"duration"`
	Utterances []meeting.Utterance `json:"utterances"`
}

type Backend interface {
	Name() string
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}

// SpeakerLabel maps a zero-based numeric speaker index to the letter labels
// used across the pipeline (0 -> "A", 25 -> "Z", 26 -> "AA").
func SpeakerLabel(index int) string {
	if index < 0 {
		return "?"
	}
	label := ""
	for n := index; ; n = n/26 - 1 {
		label = string(rune('A'+n%26)) + label
		if n < 26 {
			break
		}
	}
	return label
}

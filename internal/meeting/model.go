// Package meeting holds the data model shared by every pipeline stage.
package meeting

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Utterance is one diarized turn in a transcript.
type Utterance struct {
	Speaker    string        `json:"speaker"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence,omitempty"`
}

type Transcript struct {
	MeetingID  string        `json:"meeting_id"`
	AudioPath  string        `json:"audio_path,omitempty"`
	Duration   time.Duration `json:"duration"`
	Utterances []Utterance   `json:"utterances"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Labels returns the distinct speaker labels in order of first appearance.
func (t *Transcript) Labels() []string {
	if t == nil {
		return nil
	}

	seen := make(map[string]bool)
	var labels []string
	for _, u := range t.Utterances {
		if u.Speaker == "" || seen[u.Speaker] {
			continue
		}
		seen[u.Speaker] = true
		labels = append(labels, u.Speaker)
	}
	return labels
}

type ActionItem struct {
	Owner       string `json:"owner"`
	Description string `json:"description"`
	DueHint     string `json:"due_hint,omitempty"`
}

type Minutes struct {
	Summary      string       `json:"summary"`
	KeyPoints    []string     `json:"key_points"`
	ActionItems  []ActionItem `json:"action_items"`
	Decisions    []string     `json:"decisions"`
	NextSteps    []string     `json:"next_steps,omitempty"`
	Participants []string     `json:"participants,omitempty"`
}

// CandidateEvent is an extracted calendar proposal that has not been
// persisted anywhere yet. A zero ProposedStart means the start time could not
// be resolved.
type CandidateEvent struct {
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	ProposedStart    time.Time  `json:"proposed_start"`
	ProposedEnd      *time.Time `json:"proposed_end,omitempty"`
	// UnparsedEnd holds an end time the model gave that could not be read.
	UnparsedEnd      string     `json:"unparsed_end,omitempty"`
	Attendees        []string   `json:"attendees,omitempty"`
	Location         string     `json:"location,omitempty"`
	SourceConfidence float64    `json:"source_confidence"`
}

// HasStart reports whether the candidate carries a resolvable start time.
func (c CandidateEvent) HasStart() bool {
	return !c.ProposedStart.IsZero()
}

// CalendarEvent is a candidate that the calendar service accepted.
type CalendarEvent struct {
	CandidateEvent
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Link  string    `json:"link,omitempty"`
}

// UniqueNames trims, drops blanks and removes case-insensitive duplicates
// while keeping the first spelling and order.
func UniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		key := strings.ToLower(trimmed)
		if trimmed == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, trimmed)
	}
	return slices.Clip(out)
}

// FormatClock renders d as MM:SS. Minutes keep growing past an hour.
func FormatClock(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

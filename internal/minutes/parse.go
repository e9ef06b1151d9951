package minutes

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/llm"
	"github.com/fmueller/meetingagent/internal/meeting"
)

// TimeLayout is the wall-clock format the model is asked to use for event
// times.
const TimeLayout = "2006-01-02 15:04"

type rawActionItem struct {
	Owner       string `json:"owner"`
	Description string `json:"description"`
	Due         string `json:"due"`
	Priority    string `json:"priority,omitempty"`
}

type rawEvent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
	Attendees   []string `json:"attendees"`
	Location    string   `json:"location"`
	Explicit    *bool    `json:"explicit"`
	Confidence  *float64 `json:"confidence"`
}

type rawResponse struct {
	Summary     *string          `json:"summary"`
	KeyPoints   *[]string        `json:"key_points"`
	ActionItems *[]rawActionItem `json:"action_items"`
	Decisions   *[]string        `json:"decisions"`
	NextSteps   []string         `json:"next_steps"`
	Events      *[]rawEvent      `json:"events"`
}

// Response is a validated extraction response. Event times are resolved in
// the location passed to ParseResponse; a zero Start means the model gave no
// usable start time.
type Response struct {
	Summary     string
	KeyPoints   []string
	ActionItems []meeting.ActionItem
	Decisions   []string
	NextSteps   []string
	Events      []Event
}

type Event struct {
	Title       string
	Description string
	Start       time.Time
	End         *time.Time
	// BadEnd is the raw end text when it was given but could not be parsed.
	BadEnd      string
	Attendees   []string
	Location    string
	Explicit    bool
	Confidence  float64
	// When keeps the model's original start text for events that are
	// demoted to action items.
	When string
}

// ParseResponse decodes and validates a minutes extraction response. Every
// top-level key except next_steps is required and must have the right type.
func ParseResponse(text string, loc *time.Location) (Response, error) {
	var raw rawResponse
	if err := llm.DecodeObject(text, &raw); err != nil {
		return Response{}, err
	}

	var missing []string
	if raw.Summary == nil {
		missing = append(missing, "summary")
	}
	if raw.KeyPoints == nil {
		missing = append(missing, "key_points")
	}
	if raw.ActionItems == nil {
		missing = append(missing, "action_items")
	}
	if raw.Decisions == nil {
		missing = append(missing, "decisions")
	}
	if raw.Events == nil {
		missing = append(missing, "events")
	}
	if len(missing) > 0 {
		return Response{}, fmt.Errorf("missing required keys: %s", strings.Join(missing, ", "))
	}

	resp := Response{
		Summary:   strings.TrimSpace(*raw.Summary),
		KeyPoints: cleanList(*raw.KeyPoints),
		Decisions: cleanList(*raw.Decisions),
		NextSteps: cleanList(raw.NextSteps),
	}
	for i, item := range *raw.ActionItems {
		parsed := meeting.ActionItem{
			Owner:       strings.TrimSpace(item.Owner),
			Description: strings.TrimSpace(item.Description),
			DueHint:     strings.TrimSpace(item.Due),
		}
		if parsed.Description == "" {
			return Response{}, fmt.Errorf("action_items[%d]: description is required", i)
		}
		resp.ActionItems = append(resp.ActionItems, parsed)
	}

	if loc == nil {
		loc = time.Local
	}
	for i, ev := range *raw.Events {
		if ev.Explicit == nil || ev.Confidence == nil {
			return Response{}, fmt.Errorf("events[%d]: explicit and confidence are required", i)
		}
		if *ev.Confidence < 0 || *ev.Confidence > 1 {
			return Response{}, fmt.Errorf("events[%d]: confidence %.2f out of range [0,1]", i, *ev.Confidence)
		}
		parsed := Event{
			Title:       strings.TrimSpace(ev.Title),
			Description: strings.TrimSpace(ev.Description),
			Attendees:   ev.Attendees,
			Location:    strings.TrimSpace(ev.Location),
			Explicit:    *ev.Explicit,
			Confidence:  *ev.Confidence,
			When:        strings.TrimSpace(ev.Start),
		}
		if start, err := parseEventTime(ev.Start, loc); err == nil {
			parsed.Start = start
		}
		switch end, err := parseEventTime(ev.End, loc); {
		case err == nil:
			parsed.End = &end
		case !errors.Is(err, errNoTime):
			parsed.BadEnd = strings.TrimSpace(ev.End)
		}
		resp.Events = append(resp.Events, parsed)
	}
	return resp, nil
}

var errNoTime = errors.New("no time given")

func parseEventTime(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "null") {
		return time.Time{}, errNoTime
	}
	for _, layout := range []string{TimeLayout, "2006-01-02 15:04:05", "2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Package calendar turns candidate events into events on a calendar service.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultDuration    = time.Hour
	DefaultWorkers     = 4
	DefaultCallTimeout = 30 * time.Second
)

// ErrAuth marks failures caused by missing or rejected credentials.
var ErrAuth = errors.New("calendar authorization failed")

// Request is one event insert as the backends see it. Attendees are e-mail
// addresses where a mapping was known and bare names otherwise.
type Request struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

type Created struct {
	ID   string
	Link string
}

type Service interface {
	Name() string
	Insert(ctx context.Context, req Request) (Created, error)
}

// Outcome holds exactly one of Event or Err.
type Outcome struct {
	Event *meeting.CalendarEvent
	Err   *meeting.CalendarError
}

type Bridge struct {
	Service     Service
	Workers     int
	CallTimeout time.Duration
	// AttendeeEmails maps participant names (case-insensitive) to e-mail
	// addresses.
	AttendeeEmails map[string]string
	Logger         *zap.Logger
}

func (b *Bridge) log() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// Create inserts every candidate and returns one outcome per candidate in
// input order. Candidates without a start time are reported, never dropped.
func (b *Bridge) Create(ctx context.Context, candidates []meeting.CandidateEvent) []Outcome {
	outcomes := make([]Outcome, len(candidates))
	if len(candidates) == 0 {
		return outcomes
	}

	workers := b.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	timeout := b.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, candidate := range candidates {
		g.Go(func() error {
			outcomes[i] = b.createOne(ctx, i, candidate, timeout)
			return nil
		})
	}
	_ = g.Wait()

	created := 0
	for _, o := range outcomes {
		if o.Event != nil {
			created++
		}
	}
	b.log().Info("calendar events processed", zap.Int("candidates", len(candidates)), zap.Int("created", created))
	return outcomes
}

func (b *Bridge) createOne(ctx context.Context, index int, candidate meeting.CandidateEvent, timeout time.Duration) Outcome {
	fail := func(kind meeting.CalendarErrorKind, err error) Outcome {
		b.log().Warn("calendar event not created",
			zap.Int("index", index),
			zap.String("title", candidate.Title),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return Outcome{Err: &meeting.CalendarError{Index: index, Title: candidate.Title, Kind: kind, Err: err}}
	}

	if !candidate.HasStart() {
		return fail(meeting.CalendarUnresolvedStart, errors.New("no start time could be resolved"))
	}
	if candidate.UnparsedEnd != "" {
		return fail(meeting.CalendarMalformedTime, fmt.Errorf("end time %q could not be parsed", candidate.UnparsedEnd))
	}
	start, end := EventWindow(candidate)
	if !end.After(start) {
		return fail(meeting.CalendarMalformedTime, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)))
	}
	if b.Service == nil {
		return fail(meeting.CalendarService, errors.New("no calendar service configured"))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	created, err := b.Service.Insert(callCtx, Request{
		Title:       candidate.Title,
		Description: candidate.Description,
		Location:    candidate.Location,
		Start:       start,
		End:         end,
		Attendees:   b.attendees(candidate.Attendees),
	})
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return fail(meeting.CalendarTimeout, err)
		case errors.Is(err, ErrAuth):
			return fail(meeting.CalendarAuth, err)
		default:
			return fail(meeting.CalendarService, err)
		}
	}

	b.log().Debug("calendar event created", zap.Int("index", index), zap.String("id", created.ID))
	return Outcome{Event: &meeting.CalendarEvent{
		CandidateEvent: candidate,
		ID:             created.ID,
		Start:          start,
		End:            end,
		Link:           created.Link,
	}}
}

// EventWindow returns the start and end a candidate will be created with. A
// missing end means a one hour event.
func EventWindow(candidate meeting.CandidateEvent) (time.Time, time.Time) {
	start := candidate.ProposedStart
	if candidate.ProposedEnd == nil {
		return start, start.Add(DefaultDuration)
	}
	return start, *candidate.ProposedEnd
}

func (b *Bridge) attendees(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range meeting.UniqueNames(names) {
		if email, ok := b.lookupEmail(name); ok {
			out = append(out, email)
			continue
		}
		out = append(out, name)
	}
	return meeting.UniqueNames(out)
}

func (b *Bridge) lookupEmail(name string) (string, bool) {
	if email, ok := b.AttendeeEmails[name]; ok {
		return email, true
	}
	for key, email := range b.AttendeeEmails {
		if strings.EqualFold(key, name) {
			return email, true
		}
	}
	return "", false
}

// emailsOnly keeps the attendees that look like e-mail addresses.
func emailsOnly(attendees []string) []string {
	var out []string
	for _, a := range attendees {
		if strings.Contains(a, "@") {
			out = append(out, a)
		}
	}
	return out
}

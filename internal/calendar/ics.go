package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const icsProductID = "-//fmueller//meetingagent//EN"

// ICSService appends events to a local iCalendar file that any calendar
// application can import or subscribe to.
type ICSService struct {
	Path   string
	Logger *zap.Logger
	Now    func() time.Time

	mu sync.Mutex
}

func (s *ICSService) Name() string { return "ics" }

func (s *ICSService) Insert(ctx context.Context, req Request) (Created, error) {
	if err := ctx.Err(); err != nil {
		return Created{}, err
	}
	if s.Path == "" {
		return Created{}, errors.New("ics calendar path is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cal, err := s.load()
	if err != nil {
		return Created{}, err
	}

	id := uuid.New().String()
	cal.Children = append(cal.Children, s.event(id, req).Component)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return Created{}, fmt.Errorf("encode calendar: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return Created{}, fmt.Errorf("create calendar directory: %w", err)
	}
	tmp := s.Path + ".part"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return Created{}, fmt.Errorf("write calendar: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return Created{}, fmt.Errorf("replace calendar: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Debug("ics event appended", zap.String("uid", id), zap.String("path", s.Path))
	}
	return Created{ID: id, Link: "file://" + s.Path}, nil
}

func (s *ICSService) load() (*ical.Calendar, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(bytes.TrimSpace(data)) == 0) {
		cal := ical.NewCalendar()
		cal.Props.SetText(ical.PropVersion, "2.0")
		cal.Props.SetText(ical.PropProductID, icsProductID)
		return cal, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}

	cal, err := ical.NewDecoder(bytes.NewReader(data)).Decode()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode calendar %s: %w", s.Path, err)
	}
	if cal == nil {
		return nil, fmt.Errorf("decode calendar %s: no VCALENDAR found", s.Path)
	}
	return cal, nil
}

func (s *ICSService) event(id string, req Request) *ical.Event {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, id)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now().UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, req.Start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, req.End.UTC())
	event.Props.SetText(ical.PropSummary, req.Title)
	if req.Description != "" {
		event.Props.SetText(ical.PropDescription, req.Description)
	}
	if req.Location != "" {
		event.Props.SetText(ical.PropLocation, req.Location)
	}
	for _, email := range emailsOnly(req.Attendees) {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + email
		event.Props.Add(attendee)
	}
	return event
}

// ReadICS returns the events stored in an iCalendar file in file order.
func ReadICS(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Request
	dec := ical.NewDecoder(f)
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}
		for _, ev := range cal.Events() {
			req := Request{}
			if p := ev.Props.Get(ical.PropSummary); p != nil {
				req.Title = p.Value
			}
			if p := ev.Props.Get(ical.PropDescription); p != nil {
				req.Description = p.Value
			}
			if p := ev.Props.Get(ical.PropLocation); p != nil {
				req.Location = p.Value
			}
			if start, err := ev.DateTimeStart(time.UTC); err == nil {
				req.Start = start
			}
			if end, err := ev.DateTimeEnd(time.UTC); err == nil {
				req.End = end
			}
			for _, p := range ev.Props.Values(ical.PropAttendee) {
				req.Attendees = append(req.Attendees, trimMailto(p.Value))
			}
			out = append(out, req)
		}
	}
	return out, nil
}

func trimMailto(value string) string {
	if len(value) > 7 && (value[:7] == "mailto:" || value[:7] == "MAILTO:") {
		return value[7:]
	}
	return value
}

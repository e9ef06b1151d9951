package report

import (
	"fmt"
	"io"

	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/fmueller/meetingagent/internal/store"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Processing(kind, path string) {
	fmt.Fprintf(f.w, "🎯 %s: %s\n", kind, path)
}

func (f *Formatter) Saved(what, path string) {
	fmt.Fprintf(f.w, "✅ %s saved: %s\n", what, path)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

// Summary prints the processing summary of a finished run: artifact
// counts, created events and every stage failure.
func (f *Formatter) Summary(r *pipeline.Result) {
	if r.Failed() {
		fmt.Fprintf(f.w, "\n❌ Meeting %s failed after %s\n", r.MeetingID, FormatDuration(r.ProcessingTime))
	} else {
		fmt.Fprintf(f.w, "\n✅ Meeting %s processed in %s\n", r.MeetingID, FormatDuration(r.ProcessingTime))
	}

	if r.Transcript != nil {
		fmt.Fprintf(f.w, "   Transcript: %d utterances, %s\n", len(r.Transcript.Utterances), FormatDuration(r.Transcript.Duration))
	}
	if len(r.Speakers.Speakers) > 0 {
		f.Speakers(r.Speakers)
	}
	if m := r.Minutes; m != nil {
		fmt.Fprintf(f.w, "   Key Points: %d\n", len(m.KeyPoints))
		fmt.Fprintf(f.w, "   Action Items: %d\n", len(m.ActionItems))
		fmt.Fprintf(f.w, "   Decisions: %d\n", len(m.Decisions))
		fmt.Fprintf(f.w, "   Next Steps: %d\n", len(m.NextSteps))
		if m.Summary != "" {
			fmt.Fprintf(f.w, "\n📝 Summary: %s\n", m.Summary)
		}
	}
	if len(r.CandidateEvents) > 0 || len(r.CalendarEvents) > 0 {
		fmt.Fprintf(f.w, "\n📅 Calendar Events Created: %d of %d\n", len(r.CalendarEvents), len(r.CandidateEvents))
		for _, ev := range r.CalendarEvents {
			fmt.Fprintf(f.w, "   - %s (%s)\n", ev.Title, ev.Start.Format("2006-01-02 15:04"))
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(f.w, "\n⚠️  %d problem(s):\n", len(r.Errors))
		for _, e := range r.Errors {
			fmt.Fprintf(f.w, "   - [%s] %s\n", e.Stage, e.Message)
		}
	}
}

func (f *Formatter) Speakers(identity meeting.SpeakerIdentity) {
	fmt.Fprintf(f.w, "\n📊 Speaker Name Mapping:\n")
	for _, s := range identity.Speakers {
		name := identity.DisplayName(s.Label)
		if name == s.Label {
			name = "(unresolved)"
		}
		fmt.Fprintf(f.w, "   %s → %s [%s]\n", s.Label, name, s.Confidence)
	}
}

func (f *Formatter) History(summaries []store.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintf(f.w, "No meetings processed yet.\n")
		return
	}
	fmt.Fprintf(f.w, "📁 Meetings:\n\n")
	for _, s := range summaries {
		icon := "✅"
		if s.Status == pipeline.StatusFailed {
			icon = "❌"
		} else if s.Errors > 0 {
			icon = "⚠️ "
		}
		fmt.Fprintf(f.w, "  %s %s  %s  %d action item(s), %d event(s)  %s\n",
			icon,
			s.StartedAt.Format("2006-01-02 15:04"),
			s.MeetingID,
			s.ActionItems,
			s.Events,
			FormatDuration(s.ProcessingTime),
		)
	}
}

// Events lists every candidate event with the outcome of its creation.
func (f *Formatter) Events(r *pipeline.Result) {
	if len(r.CandidateEvents) == 0 {
		fmt.Fprintf(f.w, "No calendar events found in meeting %s.\n", r.MeetingID)
		return
	}

	created := make(map[string]meeting.CalendarEvent, len(r.CalendarEvents))
	for _, ev := range r.CalendarEvents {
		created[eventKey(ev.CandidateEvent)] = ev
	}
	failed := make(map[int]*meeting.CalendarError)
	for _, ce := range r.CalendarErrors() {
		failed[ce.Index] = ce
	}

	fmt.Fprintf(f.w, "📅 Calendar Events (%d created of %d):\n", len(r.CalendarEvents), len(r.CandidateEvents))
	for i, c := range r.CandidateEvents {
		when := "no start time"
		if c.HasStart() {
			when = c.ProposedStart.Format("2006-01-02 15:04")
		}
		switch ev, ok := created[eventKey(c)]; {
		case ok && ev.Link != "":
			fmt.Fprintf(f.w, "   ✅ %s (%s) %s\n", c.Title, when, ev.Link)
		case ok:
			fmt.Fprintf(f.w, "   ✅ %s (%s)\n", c.Title, when)
		case failed[i] != nil:
			fmt.Fprintf(f.w, "   ❌ %s (%s): %s\n", c.Title, when, failed[i].Kind)
		default:
			fmt.Fprintf(f.w, "   ⏸  %s (%s): not created\n", c.Title, when)
		}
	}
}

func eventKey(c meeting.CandidateEvent) string {
	return c.Title + "\x00" + c.ProposedStart.String()
}

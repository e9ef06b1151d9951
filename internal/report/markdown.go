// Package report renders pipeline results for people: Markdown minutes on
// disk and short status lines on the terminal.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/pipeline"
)

// WriteMinutesMarkdown renders the minutes of a run. Sections without
// content are kept with a placeholder so the document shape is stable.
func WriteMinutesMarkdown(w io.Writer, r *pipeline.Result) error {
	if r.Minutes == nil {
		return fmt.Errorf("meeting %s has no minutes", r.MeetingID)
	}
	m := r.Minutes

	var b strings.Builder
	b.WriteString("# Meeting Minutes\n\n")
	fmt.Fprintf(&b, "**Meeting:** %s\n", r.MeetingID)
	fmt.Fprintf(&b, "**Date:** %s\n", r.StartedAt.Format("2006-01-02 15:04"))
	if r.Transcript != nil {
		fmt.Fprintf(&b, "**Duration:** %s\n", FormatDuration(r.Transcript.Duration))
	}
	participants := "none recorded"
	if len(m.Participants) > 0 {
		participants = strings.Join(m.Participants, ", ")
	}
	fmt.Fprintf(&b, "**Participants:** %s\n", participants)

	if m.Summary != "" {
		b.WriteString("\n## Summary\n\n")
		b.WriteString(m.Summary)
		b.WriteString("\n")
	}

	section(&b, "Key Points Discussed", m.KeyPoints)

	b.WriteString("\n## Action Items\n\n")
	if len(m.ActionItems) == 0 {
		b.WriteString("_None._\n")
	}
	for _, item := range m.ActionItems {
		b.WriteString("- [ ] ")
		b.WriteString(item.Description)
		owner := item.Owner
		if owner == "" {
			owner = "unassigned"
		}
		fmt.Fprintf(&b, " (owner: %s", owner)
		if item.DueHint != "" {
			fmt.Fprintf(&b, ", due: %s", item.DueHint)
		}
		b.WriteString(")\n")
	}

	section(&b, "Decisions Made", m.Decisions)
	section(&b, "Next Steps", m.NextSteps)

	if len(r.CandidateEvents) > 0 {
		b.WriteString("\n## Scheduled Events\n\n")
		created := make(map[string]meeting.CalendarEvent, len(r.CalendarEvents))
		for _, ev := range r.CalendarEvents {
			created[ev.Title+"\x00"+ev.ProposedStart.String()] = ev
		}
		for _, c := range r.CandidateEvents {
			when := "time to be confirmed"
			if c.HasStart() {
				when = c.ProposedStart.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(&b, "- %s (%s)", c.Title, when)
			if ev, ok := created[c.Title+"\x00"+c.ProposedStart.String()]; ok && ev.Link != "" {
				fmt.Fprintf(&b, " [calendar](%s)", ev.Link)
			}
			b.WriteString("\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func section(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
	if len(items) == 0 {
		b.WriteString("_None._\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

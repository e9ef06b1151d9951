package minutes

import (
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/llm"
	"github.com/fmueller/meetingagent/internal/meeting"
)

const schema = `{
  "summary": "two or three sentence summary of the meeting",
  "key_points": ["point discussed"],
  "action_items": [{"owner": "participant name or empty", "description": "what has to be done", "due": "deadline as said in the meeting, or empty"}],
  "decisions": ["decision that was made"],
  "next_steps": ["next step"],
  "events": [{
    "title": "event title",
    "description": "what the event is about",
    "start": "YYYY-MM-DD HH:MM or empty",
    "end": "YYYY-MM-DD HH:MM or empty",
    "attendees": ["participant name"],
    "location": "location or empty",
    "explicit": true,
    "confidence": 0.0
  }]
}`

const systemPrompt = `You are a meeting assistant that writes accurate meeting minutes from diarized transcripts.
Only report what was actually said. Use participant names exactly as they appear in the transcript.
Respond with a single JSON object and nothing else.`

const eventRules = `Rules for "events":
- Only list meetings or appointments that participants explicitly agreed to schedule.
- "explicit" is true only when a concrete date or time was stated and agreed; vague intentions like "we should sync at some point" are not explicit.
- "confidence" (0 to 1) is how sure you are that this event was really scheduled.
- Resolve relative dates against the reference time: "Thursday" means the next Thursday after today, "5pm today" means today at 17:00.
- "morning" means 09:00, "lunch" 12:00, "afternoon" 13:00, "evening" 18:00. Prefer the next possible occurrence of an ambiguous date.
- Deadlines for tasks are action items, not events.`

const strictReminder = `Your previous answer could not be used: %s.
Answer again with ONLY the JSON object described above. Every key is required, lists may be empty, do not add keys, do not wrap the JSON in prose.`

func (e *Extractor) prompt(t *meeting.Transcript, identity meeting.SpeakerIdentity, now time.Time, retryReason string) llm.Prompt {
	limit := e.MaxPromptChars
	if limit <= 0 {
		limit = DefaultMaxPromptChars
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reference time: %s (%s). Today is %s.\n", now.Format(TimeLayout), now.Location(), now.Format("Monday, January 2, 2006"))
	fmt.Fprintf(&b, "Meeting duration: %s\n", meeting.FormatClock(t.Duration))
	fmt.Fprintf(&b, "Participants: %s\n\n", strings.Join(participants(t, identity), ", "))

	b.WriteString("Transcript:\n")
	written := 0
	for _, u := range t.Utterances {
		line := fmt.Sprintf("[%s] %s: %s\n", meeting.FormatClock(u.Start), identity.DisplayName(u.Speaker), u.Text)
		if written+len(line) > limit {
			b.WriteString("[transcript truncated]\n")
			break
		}
		b.WriteString(line)
		written += len(line)
	}

	b.WriteString("\nReturn the minutes in exactly this JSON shape:\n")
	b.WriteString(schema)
	b.WriteString("\n\n")
	b.WriteString(eventRules)
	if retryReason != "" {
		b.WriteString("\n\n")
		fmt.Fprintf(&b, strictReminder, retryReason)
	}
	return llm.Prompt{System: systemPrompt, User: b.String(), JSON: true}
}

// participants lists display names in order of first appearance.
func participants(t *meeting.Transcript, identity meeting.SpeakerIdentity) []string {
	labels := t.Labels()
	names := make([]string, 0, len(labels))
	for _, label := range labels {
		names = append(names, identity.DisplayName(label))
	}
	return meeting.UniqueNames(names)
}

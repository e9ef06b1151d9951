package transcribe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/meetingagent/internal/meeting"
)

const textSeparator = "================================================================================"

var (
	ErrEmptyTranscript = errors.New("transcript contains no utterances")

	timestampedLine = regexp.MustCompile(`^\[(\d{1,3}):(\d{2})(?::(\d{2}))?\]\s*([^:]{1,40}):\s*(.*)$`)
	labeledLine     = regexp.MustCompile(`^([A-Za-z][\w .'-]{0,39}):\s+(.+)$`)
)

// WriteText writes the human-readable transcript artifact: a short header,
// a separator line and one "[MM:SS] Speaker: text" line per utterance.
func WriteText(w io.Writer, t *meeting.Transcript) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Meeting Transcript - %s\n", t.MeetingID)
	fmt.Fprintf(bw, "Date: %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "Duration: %s\n", meeting.FormatClock(t.Duration))
	fmt.Fprintf(bw, "Participants: %s\n", strings.Join(t.Labels(), ", "))
	fmt.Fprintf(bw, "%s\n\n", textSeparator)
	for _, u := range t.Utterances {
		fmt.Fprintf(bw, "[%s] %s: %s\n", meeting.FormatClock(u.Start), u.Speaker, u.Text)
	}
	return bw.Flush()
}

// ParseText reads a transcript in the WriteText format. The header is
// optional, timestamps are optional, and unlabeled lines continue the
// previous utterance.
func ParseText(r io.Reader) (*meeting.Transcript, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	t := &meeting.Transcript{}
	body := lines
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if id, ok := strings.CutPrefix(trimmed, "Meeting Transcript - "); ok {
			t.MeetingID = strings.TrimSpace(id)
		}
		if date, ok := strings.CutPrefix(trimmed, "Date: "); ok {
			if parsed, err := time.ParseInLocation("2006-01-02 15:04:05", strings.TrimSpace(date), time.Local); err == nil {
				t.CreatedAt = parsed
			}
		}
		if strings.HasPrefix(trimmed, "=====") && strings.Trim(trimmed, "=") == "" {
			body = lines[i+1:]
			break
		}
	}

	for _, line := range body {
		line = strings.TrimSpace(line)
		if line == "" || isHeaderLine(line) {
			continue
		}
		if m := timestampedLine.FindStringSubmatch(line); m != nil {
			t.Utterances = append(t.Utterances, meeting.Utterance{
				Speaker: strings.TrimSpace(m[4]),
				Start:   parseClock(m[1], m[2], m[3]),
				Text:    strings.TrimSpace(m[5]),
			})
			continue
		}
		if m := labeledLine.FindStringSubmatch(line); m != nil {
			t.Utterances = append(t.Utterances, meeting.Utterance{
				Speaker: strings.TrimSpace(m[1]),
				Text:    strings.TrimSpace(m[2]),
			})
			continue
		}
		if n := len(t.Utterances); n > 0 {
			t.Utterances[n-1].Text = strings.TrimSpace(t.Utterances[n-1].Text + " " + line)
		}
	}

	if len(t.Utterances) == 0 {
		return nil, ErrEmptyTranscript
	}
	for i := range t.Utterances {
		if i+1 < len(t.Utterances) {
			t.Utterances[i].End = t.Utterances[i+1].Start
		}
		if t.Utterances[i].End > t.Duration {
			t.Duration = t.Utterances[i].End
		}
	}
	return t, nil
}

func isHeaderLine(line string) bool {
	for _, prefix := range []string{"Meeting Transcript - ", "Date: ", "Duration: ", "Participants: "} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// parseClock accepts MM:SS and HH:MM:SS.
func parseClock(a, b, c string) time.Duration {
	first, _ := strconv.Atoi(a)
	second, _ := strconv.Atoi(b)
	if c == "" {
		return time.Duration(first)*time.Minute + time.Duration(second)*time.Second
	}
	third, _ := strconv.Atoi(c)
	return time.Duration(first)*time.Hour + time.Duration(second)*time.Minute + time.Duration(third)*time.Second
}

package speakers

import (
	"regexp"
	"slices"
	"strings"

	"github.com/fmueller/meetingagent/internal/meeting"
)

const greeting = `(?:(?i:hi|hello|hey|good morning|morning|ok|okay)[,!.]?\s+(?i:all|everyone|folks|team)?[,!.]?\s*)?`

const namePattern = `([A-Z][a-z]+(?:[-'][A-Z]?[a-z]+)?(?:\s+[A-Z][a-z]+(?:[-'][A-Z]?[a-z]+)?)?)`

var (
	selfIntroCues = []*regexp.Regexp{
		regexp.MustCompile(`(?:^|[\s,.!?])(?i:i'm|i am|my name is)\s+` + namePattern),
		regexp.MustCompile(`(?:^|[.!?]\s+)` + greeting + namePattern + `\s+(?i:here|speaking)\b`),
	}
	// "this is X" and "it's X" usually introduce things, not people. They
	// only count at the start of a sentence and only when a label has no
	// explicit introduction.
	looseIntroCue = regexp.MustCompile(`(?:^|[.!?]\s+)` + greeting + `(?i:this is|it's)\s+` + namePattern)
	thanksCue  = regexp.MustCompile(`^(?i:thanks|thank you|cheers|hi|hello|hey)[,]?\s+` + namePattern + `\b`)
	requestCue = regexp.MustCompile(`(?:^|[.!?]\s+)` + namePattern + `,\s+(?i:can you|could you|would you|will you|do you|are you)\b`)

	notNames = map[string]bool{
		"A": true, "All": true, "Also": true, "And": true, "Any": true, "Are": true,
		"But": true, "Can": true, "Could": true, "Everyone": true, "Everybody": true,
		"Folks": true, "Going": true, "Good": true, "Great": true, "Guys": true,
		"Happy": true, "Here": true, "Hi": true, "Hello": true, "Hey": true, "I": true,
		"Just": true, "Let": true, "Looking": true, "Maybe": true, "Morning": true,
		"Not": true, "Now": true, "Okay": true, "Ok": true, "Really": true, "Right": true,
		"Since": true, "So": true, "Sorry": true, "Sure": true, "Team": true, "Thanks": true,
		"That": true, "The": true, "Then": true, "There": true, "This": true, "We": true,
		"Well": true, "What": true, "Yes": true, "Yeah": true, "You": true, "Your": true,
		"Speaker": true, "Monday": true, "Tuesday": true, "Wednesday": true,
		"Thursday": true, "Friday": true, "Saturday": true, "Sunday": true,
	}
)

type cueKind int

const (
	cueSelf cueKind = iota
	cueLooseSelf
	cueAddressed
)

type votes struct {
	self      map[string]int
	looseSelf map[string]int
	addressed map[string]int
	order     []string
}

func (v *votes) add(kind cueKind, name string) {
	if v.self == nil {
		v.self = make(map[string]int)
		v.looseSelf = make(map[string]int)
		v.addressed = make(map[string]int)
	}
	switch kind {
	case cueSelf:
		v.self[name]++
	case cueLooseSelf:
		v.looseSelf[name]++
	default:
		v.addressed[name]++
	}
	if !slices.Contains(v.order, name) {
		v.order = append(v.order, name)
	}
}

// Heuristic infers speaker names from self-introductions and from how other
// participants address a speaker. Every transcript label gets an entry;
// labels without any cue keep their own token with confidence none.
func Heuristic(t *meeting.Transcript) meeting.SpeakerIdentity {
	labels := t.Labels()
	byLabel := make(map[string]*votes, len(labels))
	for _, label := range labels {
		byLabel[label] = &votes{}
	}

	utterances := t.Utterances
	for i, u := range utterances {
		if u.Speaker == "" {
			continue
		}
		text := strings.TrimSpace(u.Text)

		for _, cue := range selfIntroCues {
			for _, m := range cue.FindAllStringSubmatch(text, -1) {
				if name, ok := cleanName(m[1]); ok {
					byLabel[u.Speaker].add(cueSelf, name)
				}
			}
		}
		for _, m := range looseIntroCue.FindAllStringSubmatch(text, -1) {
			if name, ok := cleanName(m[1]); ok {
				byLabel[u.Speaker].add(cueLooseSelf, name)
			}
		}

		if m := thanksCue.FindStringSubmatch(text); m != nil {
			if name, ok := cleanName(m[1]); ok {
				if prev := neighbour(utterances, i, -1); prev != "" {
					byLabel[prev].add(cueAddressed, name)
				}
			}
		}
		for _, m := range requestCue.FindAllStringSubmatch(text, -1) {
			if name, ok := cleanName(m[1]); ok {
				if next := neighbour(utterances, i, 1); next != "" {
					byLabel[next].add(cueAddressed, name)
				}
			}
		}
	}

	identity := meeting.SpeakerIdentity{Speakers: make([]meeting.SpeakerName, 0, len(labels))}
	for _, label := range labels {
		identity.Speakers = append(identity.Speakers, decide(label, byLabel[label]))
	}
	return identity
}

// decide picks the best-supported name for one label. Explicit
// self-introductions outrank loose ones, which outrank being addressed; a tie
// between different names within the winning group lowers confidence.
func decide(label string, v *votes) meeting.SpeakerName {
	anonymous := meeting.SpeakerName{Label: label, Name: label, Confidence: meeting.ConfidenceNone}
	if len(v.order) == 0 {
		return anonymous
	}

	pick := func(counts map[string]int, confidence meeting.Confidence) (meeting.SpeakerName, bool) {
		counts = foldShortNames(counts)
		best, bestCount, tied := "", 0, false
		for _, name := range v.order {
			count := counts[name]
			switch {
			case count > bestCount:
				best, bestCount, tied = name, count, false
			case count == bestCount && count > 0:
				tied = true
			}
		}
		if bestCount == 0 {
			return meeting.SpeakerName{}, false
		}
		if tied {
			confidence = meeting.ConfidenceLow
		}
		return meeting.SpeakerName{Label: label, Name: best, Confidence: confidence, Source: meeting.SourceHeuristic}, true
	}

	if name, ok := pick(v.self, meeting.ConfidenceHigh); ok {
		return name
	}
	if name, ok := pick(v.looseSelf, meeting.ConfidenceHigh); ok {
		return name
	}
	if name, ok := pick(v.addressed, meeting.ConfidenceMedium); ok {
		return name
	}
	return anonymous
}

// foldShortNames credits votes for a bare first name to a full name that
// starts with it ("John" counts towards "John Smith").
func foldShortNames(counts map[string]int) map[string]int {
	folded := make(map[string]int, len(counts))
	for name, count := range counts {
		folded[name] += count
	}
	for short, count := range counts {
		if strings.Contains(short, " ") {
			continue
		}
		var full []string
		for name := range counts {
			if strings.HasPrefix(name, short+" ") {
				full = append(full, name)
			}
		}
		if len(full) == 1 {
			folded[full[0]] += count
			delete(folded, short)
		}
	}
	return folded
}

// neighbour returns the nearest speaker in direction dir whose label differs
// from utterance i's speaker.
func neighbour(utterances []meeting.Utterance, i, dir int) string {
	self := utterances[i].Speaker
	for j := i + dir; j >= 0 && j < len(utterances); j += dir {
		if label := utterances[j].Speaker; label != "" && label != self {
			return label
		}
	}
	return ""
}

func cleanName(raw string) (string, bool) {
	words := strings.Fields(raw)
	for len(words) > 0 && notNames[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 || notNames[words[0]] {
		return "", false
	}
	for _, w := range words {
		if strings.HasSuffix(w, "'s") {
			return "", false
		}
	}
	return strings.Join(words, " "), true
}

package meeting

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownName marks a label whose identity could not be established or was
// contradicted.
const UnknownName = "unknown"

type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
)

var confidenceNames = [...]string{"none", "low", "medium", "high"}

func (c Confidence) String() string {
	if c < ConfidenceNone || int(c) >= len(confidenceNames) {
		return fmt.Sprintf("confidence(%d)", int(c))
	}
	return confidenceNames[c]
}

func ParseConfidence(value string) (Confidence, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for i, name := range confidenceNames {
		if name == normalized {
			return Confidence(i), nil
		}
	}
	return ConfidenceNone, fmt.Errorf("unknown confidence %q", value)
}

func (c Confidence) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Confidence) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseConfidence(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// NameSource records which pass produced a speaker name.
type NameSource string

const (
	SourceNone      NameSource = ""
	SourceHeuristic NameSource = "heuristic"
	SourceLLM       NameSource = "llm"
)

type SpeakerName struct {
	Label      string     `json:"label"`
	Name       string     `json:"name"`
	Confidence Confidence `json:"confidence"`
	Source     NameSource `json:"source,omitempty"`
}

// Resolved reports whether the entry carries a usable real name.
func (s SpeakerName) Resolved() bool {
	return s.Name != "" && s.Name != UnknownName && s.Name != s.Label
}

// SpeakerIdentity maps every speaker label of one transcript to an inferred
// name. Entries keep the transcript's label order.
type SpeakerIdentity struct {
	Speakers []SpeakerName `json:"speakers"`
}

func (s SpeakerIdentity) Get(label string) (SpeakerName, bool) {
	for _, entry := range s.Speakers {
		if entry.Label == label {
			return entry, true
		}
	}
	return SpeakerName{}, false
}

// DisplayName returns the inferred name when it is at least medium
// confidence and the original label otherwise.
func (s SpeakerIdentity) DisplayName(label string) string {
	entry, ok := s.Get(label)
	if !ok || !entry.Resolved() || entry.Confidence < ConfidenceMedium {
		return label
	}
	return entry.Name
}

// Names returns the label to name mapping, with unresolved labels mapped to
// their own token.
func (s SpeakerIdentity) Names() map[string]string {
	out := make(map[string]string, len(s.Speakers))
	for _, entry := range s.Speakers {
		if entry.Resolved() {
			out[entry.Label] = entry.Name
			continue
		}
		out[entry.Label] = entry.Label
	}
	return out
}

func (s SpeakerIdentity) Empty() bool {
	return len(s.Speakers) == 0
}

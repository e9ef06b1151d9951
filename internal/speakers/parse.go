package speakers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/meetingagent/internal/llm"
)

// Status is the model's verdict on one label of the provisional mapping.
type Status string

const (
	StatusConfirmed    Status = "confirmed"
	StatusCorrected    Status = "corrected"
	StatusContradicted Status = "contradicted"
	StatusUnknown      Status = "unknown"
)

type Entry struct {
	Label  string `json:"label"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// ParseMapping validates a speaker-mapping response. Entries for labels that
// are not in labels are dropped; every other malformation is an error.
func ParseMapping(response string, labels []string) ([]Entry, error) {
	var parsed struct {
		Speakers *[]Entry `json:"speakers"`
	}
	if err := llm.DecodeObject(response, &parsed); err != nil {
		return nil, fmt.Errorf("parse speaker mapping: %w", err)
	}
	if parsed.Speakers == nil {
		return nil, errors.New("parse speaker mapping: missing \"speakers\" array")
	}

	known := make(map[string]bool, len(labels))
	for _, label := range labels {
		known[label] = true
	}

	seen := make(map[string]bool)
	entries := make([]Entry, 0, len(*parsed.Speakers))
	for i, entry := range *parsed.Speakers {
		entry.Label = strings.TrimSpace(entry.Label)
		entry.Name = strings.TrimSpace(entry.Name)
		entry.Status = Status(strings.ToLower(strings.TrimSpace(string(entry.Status))))

		if entry.Label == "" {
			return nil, fmt.Errorf("parse speaker mapping: entry %d has no label", i)
		}
		switch entry.Status {
		case StatusConfirmed, StatusCorrected, StatusContradicted, StatusUnknown:
		default:
			return nil, fmt.Errorf("parse speaker mapping: entry %d (%s) has invalid status %q", i, entry.Label, entry.Status)
		}
		if (entry.Status == StatusConfirmed || entry.Status == StatusCorrected) && entry.Name == "" {
			return nil, fmt.Errorf("parse speaker mapping: entry %d (%s) is %s without a name", i, entry.Label, entry.Status)
		}
		if !known[entry.Label] || seen[entry.Label] {
			continue
		}
		seen[entry.Label] = true
		entries = append(entries, entry)
	}
	return entries, nil
}

// Package speakers infers real participant names for the anonymous speaker
// labels of a diarized transcript.
package speakers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/meetingagent/internal/llm"
	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/transcribe"
	"go.uber.org/zap"
)

const DefaultMaxPromptChars = 24000

var errNoLLM = errors.New("no language model configured")

type Resolver struct {
	LLM            llm.Client
	Logger         *zap.Logger
	MaxPromptChars int
}

func (r *Resolver) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve runs the heuristic pass and then asks the model to confirm it and
// fill the gaps. When the model is unavailable or answers garbage, the
// heuristic mapping is returned together with a
// *meeting.SpeakerResolutionError.
func (r *Resolver) Resolve(ctx context.Context, t *meeting.Transcript) (meeting.SpeakerIdentity, error) {
	labels := t.Labels()
	if len(labels) == 0 {
		return meeting.SpeakerIdentity{}, nil
	}

	provisional := Heuristic(t)
	logger := r.log()
	for _, s := range provisional.Speakers {
		logger.Debug("heuristic speaker name",
			zap.String("label", s.Label),
			zap.String("name", s.Name),
			zap.Stringer("confidence", s.Confidence),
		)
	}

	if r.LLM == nil {
		return finalize(provisional), &meeting.SpeakerResolutionError{Err: errNoLLM}
	}

	response, err := r.LLM.Complete(ctx, r.prompt(t, provisional))
	if err != nil {
		logger.Warn("speaker naming model call failed; using heuristic names", zap.Error(err))
		return finalize(provisional), &meeting.SpeakerResolutionError{Err: err}
	}
	entries, err := ParseMapping(response, labels)
	if err != nil {
		logger.Warn("speaker naming response rejected; using heuristic names", zap.Error(err))
		return finalize(provisional), &meeting.SpeakerResolutionError{Err: err}
	}

	identity := finalize(Merge(provisional, entries))
	logger.Info("speakers resolved", zap.Int("labels", len(labels)), zap.Int("named", countNamed(identity)))
	return identity, nil
}

// AnalyzeText resolves speakers for a transcript stored in the plain text
// format written by the process command.
func (r *Resolver) AnalyzeText(ctx context.Context, text string) (*meeting.Transcript, meeting.SpeakerIdentity, error) {
	t, err := transcribe.ParseText(strings.NewReader(text))
	if err != nil {
		return nil, meeting.SpeakerIdentity{}, err
	}
	identity, err := r.Resolve(ctx, t)
	return t, identity, err
}

// Merge applies the model's verdicts to the heuristic mapping. The model may
// name labels the heuristic could not (or only weakly) name, and may flag
// heuristic names as contradicted; it never overrides a confident heuristic
// name.
func Merge(provisional meeting.SpeakerIdentity, entries []Entry) meeting.SpeakerIdentity {
	merged := meeting.SpeakerIdentity{Speakers: make([]meeting.SpeakerName, len(provisional.Speakers))}
	copy(merged.Speakers, provisional.Speakers)

	verdicts := make(map[string]Entry, len(entries))
	for _, e := range entries {
		verdicts[e.Label] = e
	}

	var contradicted []string
	for i, s := range merged.Speakers {
		verdict, ok := verdicts[s.Label]
		if !ok {
			continue
		}
		confident := s.Resolved() && s.Confidence >= meeting.ConfidenceMedium

		switch {
		case confident && verdict.Status == StatusContradicted:
			contradicted = append(contradicted, s.Name)
		case !confident && (verdict.Status == StatusConfirmed || verdict.Status == StatusCorrected):
			name := strings.TrimSpace(verdict.Name)
			if name == "" || strings.EqualFold(name, meeting.UnknownName) || name == s.Label {
				continue
			}
			merged.Speakers[i] = meeting.SpeakerName{
				Label:      s.Label,
				Name:       name,
				Confidence: meeting.ConfidenceMedium,
				Source:     meeting.SourceLLM,
			}
		}
	}

	for _, name := range contradicted {
		for i, s := range merged.Speakers {
			if strings.EqualFold(s.Name, name) {
				merged.Speakers[i] = unknown(s.Label)
			}
		}
	}
	return merged
}

// finalize downgrades labels that share a name and gives unresolved labels
// their own token back.
func finalize(identity meeting.SpeakerIdentity) meeting.SpeakerIdentity {
	out := meeting.SpeakerIdentity{Speakers: make([]meeting.SpeakerName, len(identity.Speakers))}
	copy(out.Speakers, identity.Speakers)

	owners := make(map[string]int)
	for _, s := range out.Speakers {
		if s.Resolved() {
			owners[strings.ToLower(s.Name)]++
		}
	}
	for i, s := range out.Speakers {
		switch {
		case s.Resolved() && owners[strings.ToLower(s.Name)] > 1:
			out.Speakers[i] = unknown(s.Label)
		case s.Name == "":
			out.Speakers[i] = meeting.SpeakerName{Label: s.Label, Name: s.Label, Confidence: meeting.ConfidenceNone}
		}
	}
	return out
}

func unknown(label string) meeting.SpeakerName {
	return meeting.SpeakerName{Label: label, Name: meeting.UnknownName, Confidence: meeting.ConfidenceNone}
}

func countNamed(identity meeting.SpeakerIdentity) int {
	n := 0
	for _, s := range identity.Speakers {
		if s.Resolved() && s.Confidence >= meeting.ConfidenceMedium {
			n++
		}
	}
	return n
}

const systemPrompt = "You identify speakers in meeting transcripts. " +
	"Speaker labels are anonymous tokens. Use introductions, self-identifications " +
	"and how participants address each other to decide who each label is. " +
	"Never invent a name that is not supported by the transcript. Respond with JSON only."

func (r *Resolver) prompt(t *meeting.Transcript, provisional meeting.SpeakerIdentity) llm.Prompt {
	limit := r.MaxPromptChars
	if limit <= 0 {
		limit = DefaultMaxPromptChars
	}

	var b strings.Builder
	b.WriteString("Provisional mapping from pattern matching:\n")
	for _, s := range provisional.Speakers {
		if s.Resolved() {
			fmt.Fprintf(&b, "- %s: %s (%s)\n", s.Label, s.Name, s.Confidence)
		} else {
			fmt.Fprintf(&b, "- %s: unresolved\n", s.Label)
		}
	}

	b.WriteString("\nTranscript:\n")
	written := 0
	for _, u := range t.Utterances {
		line := fmt.Sprintf("[%s] %s: %s\n", meeting.FormatClock(u.Start), u.Speaker, u.Text)
		if written+len(line) > limit {
			b.WriteString("[transcript truncated]\n")
			break
		}
		b.WriteString(line)
		written += len(line)
	}

	b.WriteString(`
For every label return one entry:
{"speakers":[{"label":"A","name":"Full Name","status":"confirmed|corrected|contradicted|unknown"}]}
- confirmed: the provisional name is right, or you found a name for an unresolved label
- corrected: the provisional name is wrong and the transcript supports another name
- contradicted: the transcript contradicts the provisional name and supports no other
- unknown: no evidence either way; use an empty name
`)
	return llm.Prompt{System: systemPrompt, User: b.String(), JSON: true}
}

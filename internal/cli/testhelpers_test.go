package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fmueller/meetingagent/internal/calendar"
	"github.com/fmueller/meetingagent/internal/config"
	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/fmueller/meetingagent/internal/store"
	"github.com/stretchr/testify/require"
)

var sprintReview = time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

func sampleTranscript() *meeting.Transcript {
	return &meeting.Transcript{
		Duration: 55 * time.Second,
		Utterances: []meeting.Utterance{
			{Speaker: "A", Start: 0, End: 8 * time.Second, Text: "Good morning, I'm John Smith."},
			{Speaker: "B", Start: 8 * time.Second, End: 22 * time.Second, Text: "Sarah Johnson here."},
			{Speaker: "A", Start: 45 * time.Second, End: 55 * time.Second, Text: "Sprint review on Thursday at 2pm."},
		},
	}
}

func sampleIdentity() meeting.SpeakerIdentity {
	return meeting.SpeakerIdentity{Speakers: []meeting.SpeakerName{
		{Label: "A", Name: "John Smith", Confidence: meeting.ConfidenceHigh, Source: meeting.SourceHeuristic},
		{Label: "B", Name: "Sarah Johnson", Confidence: meeting.ConfidenceHigh, Source: meeting.SourceHeuristic},
	}}
}

type stubTranscriber struct {
	transcript *meeting.Transcript
	err        error
}

func (s stubTranscriber) Transcribe(context.Context, string) (*meeting.Transcript, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.transcript, nil
}

type stubSpeakers struct {
	calls atomic.Int32
}

func (s *stubSpeakers) Resolve(context.Context, *meeting.Transcript) (meeting.SpeakerIdentity, error) {
	s.calls.Add(1)
	return sampleIdentity(), nil
}

type stubMinutes struct {
	calls atomic.Int32
}

func (s *stubMinutes) Extract(context.Context, *meeting.Transcript, meeting.SpeakerIdentity) (*meeting.Minutes, []meeting.CandidateEvent, error) {
	s.calls.Add(1)
	return &meeting.Minutes{
			Summary:      "The team scheduled the sprint review.",
			KeyPoints:    []string{"Spec document is ready"},
			ActionItems:  []meeting.ActionItem{{Owner: "Sarah Johnson", Description: "Share the spec document", DueHint: "end of day"}},
			Decisions:    []string{"Sprint review on Thursday"},
			Participants: []string{"John Smith", "Sarah Johnson"},
		}, []meeting.CandidateEvent{
			{Title: "Sprint review", ProposedStart: sprintReview, Attendees: []string{"John Smith", "Sarah Johnson"}, SourceConfidence: 0.9},
			{Title: "Design handoff", SourceConfidence: 0.8},
		}, nil
}

type stubCalendar struct {
	calls atomic.Int32
}

func (s *stubCalendar) Create(_ context.Context, candidates []meeting.CandidateEvent) []calendar.Outcome {
	s.calls.Add(1)
	out := make([]calendar.Outcome, len(candidates))
	for i, c := range candidates {
		if !c.HasStart() {
			out[i] = calendar.Outcome{Err: &meeting.CalendarError{Index: i, Title: c.Title, Kind: meeting.CalendarUnresolvedStart, Err: errors.New("no start time")}}
			continue
		}
		out[i] = calendar.Outcome{Event: &meeting.CalendarEvent{
			CandidateEvent: c,
			ID:             "evt1",
			Start:          c.ProposedStart,
			End:            c.ProposedStart.Add(time.Hour),
			Link:           "https://calendar.example/evt1",
		}}
	}
	return out
}

type testEnv struct {
	app        *appState
	cfg        config.Config
	speakers   *stubSpeakers
	minutes    *stubMinutes
	calendar   *stubCalendar
	transcribe stubTranscriber
	history    store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Default(dir)
	history, err := store.NewFileStore(cfg.Store.Dir)
	require.NoError(t, err)

	env := &testEnv{
		cfg:        cfg,
		speakers:   &stubSpeakers{},
		minutes:    &stubMinutes{},
		calendar:   &stubCalendar{},
		transcribe: stubTranscriber{transcript: sampleTranscript()},
		history:    history,
	}
	env.app = &appState{
		noProgress:   true,
		loadConfigFn: func() (config.Config, error) { return env.cfg, nil },
		runtimeFn: func(context.Context) (*runtime, error) {
			return &runtime{
				pipeline: &pipeline.Orchestrator{
					Transcriber:  env.transcribe,
					Speakers:     env.speakers,
					Minutes:      env.minutes,
					Calendar:     env.calendar,
					History:      env.history,
					RetryBackoff: time.Millisecond,
				},
			}, nil
		},
		analyzerFn: func() (*pipeline.Orchestrator, error) {
			return &pipeline.Orchestrator{Speakers: env.speakers}, nil
		},
		historyFn: func(context.Context) (store.Store, error) { return env.history, nil },
	}
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) (stdout string, stderr string, err error) {
	t.Helper()

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	e.app.out = outBuf

	cmd := newRootCmd(e.app)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return newTestEnv(t).run(t, args...)
}

func outputPath(dir, meetingID, ext string) string {
	return filepath.Join(dir, meetingID+ext)
}

// makeToneWAV returns a mono 16-bit PCM WAV with a loud sine tone.
func makeToneWAV(seconds float64, sampleRate int) []byte {
	n := int(seconds * float64(sampleRate))
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	dataSize := len(samples) * 2
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], 1)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(out[32:], 2)
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[44+2*i:], uint16(s))
	}
	return out
}

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fmueller/meetingagent/internal/calendar"
	"github.com/fmueller/meetingagent/internal/config"
	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/transcribe"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	require.Subset(t, names, []string{"process", "minutes", "events", "transcript", "analyze", "history", "version"})

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("data-dir"))
	require.Equal(t, ".env", cmd.PersistentFlags().Lookup("env-file").DefValue)
	require.Equal(t, "false", cmd.PersistentFlags().Lookup("no-progress").DefValue)

	process, _, err := cmd.Find([]string{"process"})
	require.NoError(t, err)
	require.NotNil(t, process.Flags().Lookup("meeting-id"))
	require.NotNil(t, process.Flags().Lookup("calendar"))
	require.NotNil(t, process.Flags().Lookup("event-threshold"))

	transcript, _, err := cmd.Find([]string{"transcript"})
	require.NoError(t, err)
	require.Nil(t, transcript.Flags().Lookup("calendar"))
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "process", args: []string{"process", "--help"}, contains: "create calendar events"},
		{name: "minutes", args: []string{"minutes", "--help"}, contains: "without creating events"},
		{name: "transcript", args: []string{"transcript", "--help"}, contains: "speaker labels"},
		{name: "analyze", args: []string{"analyze", "--help"}, contains: "saved transcript"},
		{name: "history", args: []string{"history", "--help"}, contains: "--limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestCLIErrorCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{name: "unknown command", args: []string{"badcmd"}, errContains: "unknown command"},
		{name: "unknown root flag", args: []string{"--badflag"}, errContains: "unknown flag"},
		{name: "unknown subcommand flag", args: []string{"process", "--bogus", "f.wav"}, errContains: "unknown flag"},
		{name: "process missing arg", args: []string{"process"}, errContains: "accepts 1 arg(s)"},
		{name: "analyze too many args", args: []string{"analyze", "a.txt", "b.txt"}, errContains: "accepts 1 arg(s)"},
		{name: "history too many args", args: []string{"history", "a", "b"}, errContains: "accepts at most 1 arg(s)"},
		{name: "history unknown meeting", args: []string{"history", "meeting_missing"}, errContains: `no meeting with id "meeting_missing"`},
		{name: "analyze missing file", args: []string{"analyze", "/no/such/transcript.txt"}, errContains: "open transcript"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, _, err := runCommand(t, tt.args)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestVersionFlagOutput(t *testing.T) {
	t.Parallel()

	stdout, _, err := runCommand(t, []string{"--version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "meetingagent v"), "expected version prefix, got: %s", stdout)

	stdout, _, err = runCommand(t, []string{"version"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "meetingagent v"), "expected version prefix, got: %s", stdout)
}

func TestProcessWritesOutputsAndRecordsHistory(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stdout, _, err := env.run(t, "process", "--meeting-id", "meeting_20260302_100000_test", "sync.wav")
	require.NoError(t, err)

	require.Contains(t, stdout, "Transcript saved")
	require.Contains(t, stdout, "Minutes saved")
	require.Contains(t, stdout, "✅ Meeting meeting_20260302_100000_test processed")
	require.Contains(t, stdout, "A → John Smith [high]")
	require.Contains(t, stdout, "Calendar Events Created: 1 of 2")
	require.Contains(t, stdout, "unresolved_start")

	transcriptFile := outputPath(env.cfg.Output.TranscriptsDir, "meeting_20260302_100000_test", ".txt")
	f, err := os.Open(transcriptFile)
	require.NoError(t, err)
	defer f.Close()
	parsed, err := transcribe.ParseText(f)
	require.NoError(t, err)
	require.Len(t, parsed.Utterances, 3)
	require.Equal(t, "meeting_20260302_100000_test", parsed.MeetingID)

	minutesFile, err := os.ReadFile(outputPath(env.cfg.Output.MinutesDir, "meeting_20260302_100000_test", ".md"))
	require.NoError(t, err)
	require.Contains(t, string(minutesFile), "- [ ] Share the spec document (owner: Sarah Johnson, due: end of day)")

	stdout, _, err = env.run(t, "history")
	require.NoError(t, err)
	require.Contains(t, stdout, "meeting_20260302_100000_test")
	require.Contains(t, stdout, "1 action item(s), 1 event(s)")

	stdout, _, err = env.run(t, "history", "meeting_20260302_100000_test")
	require.NoError(t, err)
	require.Contains(t, stdout, "processed in")
}

func TestProcessFailedTranscriptionExitsNonZero(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.transcribe = stubTranscriber{err: meeting.NewTranscriptionError(meeting.TranscriptionUnsupported, "notes.ogg", errors.New("unsupported audio format"))}

	stdout, _, err := env.run(t, "process", "notes.ogg")
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed")
	require.Contains(t, err.Error(), "unsupported")
	require.Contains(t, stdout, "❌ Meeting")
	require.NotContains(t, stdout, "Transcript saved")
	require.Zero(t, env.speakers.calls.Load())

	stdout, _, err = env.run(t, "history")
	require.NoError(t, err)
	require.Contains(t, stdout, "❌")
}

func TestTranscriptStopsAfterTranscription(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stdout, stderr, err := env.run(t, "transcript", "sync.wav")
	require.NoError(t, err)

	require.Contains(t, stdout, "[00:08] B: Sarah Johnson here.")
	require.Contains(t, stderr, "Transcript saved")
	require.Zero(t, env.speakers.calls.Load())
	require.Zero(t, env.minutes.calls.Load())
	require.Zero(t, env.calendar.calls.Load())
}

func TestMinutesSkipsCalendar(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stdout, stderr, err := env.run(t, "minutes", "sync.wav")
	require.NoError(t, err)

	require.Contains(t, stdout, "# Meeting Minutes")
	require.Contains(t, stdout, "The team scheduled the sprint review.")
	require.Contains(t, stderr, "Minutes saved")
	require.Equal(t, int32(1), env.minutes.calls.Load())
	require.Zero(t, env.calendar.calls.Load())
}

func TestEventsReportsOutcomes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	stdout, _, err := env.run(t, "events", "sync.wav")
	require.NoError(t, err)

	require.Contains(t, stdout, "Calendar Events (1 created of 2)")
	require.Contains(t, stdout, "✅ Sprint review (2026-03-05 14:00) https://calendar.example/evt1")
	require.Contains(t, stdout, "❌ Design handoff (no start time): unresolved_start")
}

func TestAnalyzeRenamesSavedTranscript(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "meeting.txt")
	var buf bytes.Buffer
	require.NoError(t, transcribe.WriteText(&buf, sampleTranscript()))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	stdout, _, err := env.run(t, "analyze", path)
	require.NoError(t, err)
	require.Contains(t, stdout, "B → Sarah Johnson [high]")
	require.Contains(t, stdout, "[00:45] John Smith: Sprint review on Thursday at 2pm.")
	require.Equal(t, int32(1), env.speakers.calls.Load())
}

func TestFlagsOverrideConfiguration(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	outDir := t.TempDir()
	_, _, err := env.run(t, "process",
		"--calendar", "none",
		"--event-threshold", "0.85",
		"--llm-model", "gpt-4o-mini",
		"--retries", "0",
		"--call-timeout", "45s",
		"--minutes-dir", outDir,
		"sync.wav",
	)
	require.NoError(t, err)

	cfg := env.app.cfg
	require.Equal(t, config.CalendarNone, cfg.Calendar.Backend)
	require.Equal(t, 0.85, cfg.Minutes.EventThreshold)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, 0, cfg.Pipeline.TranscriptionRetries)
	require.Equal(t, 45*time.Second, cfg.Pipeline.CallTimeout.Duration)
	require.Equal(t, outDir, cfg.Output.MinutesDir)
	require.Equal(t, env.cfg.Transcription.Provider, cfg.Transcription.Provider)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestBuildRuntimeFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default(t.TempDir())
	cfg.Transcription.AssemblyAIKey = "test-key"

	rt, err := buildRuntime(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	require.NotNil(t, rt.pipeline.Transcriber)
	require.NotNil(t, rt.pipeline.Speakers)
	require.NotNil(t, rt.pipeline.Minutes)
	require.NotNil(t, rt.pipeline.Calendar)
	require.NotNil(t, rt.pipeline.History)

	bridge, ok := rt.pipeline.Calendar.(*calendar.Bridge)
	require.True(t, ok)
	require.Equal(t, cfg.Pipeline.CallTimeout.Duration, bridge.CallTimeout)
	require.Equal(t, cfg.Calendar.Workers, bridge.Workers)

	cfg.Calendar.Backend = config.CalendarNone
	cfg.Transcription.Provider = config.ProviderDeepgram
	cfg.Transcription.DeepgramKey = "dg-key"
	rt, err = buildRuntime(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Nil(t, rt.pipeline.Calendar)

	cfg.Transcription.DeepgramKey = ""
	_, err = buildRuntime(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "DEEPGRAM_API_KEY")

	cfg.Transcription.DeepgramKey = "dg-key"
	cfg.Minutes.TimeZone = "Mars/Olympus_Mons"
	_, err = buildRuntime(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "minutes.timezone")
}

func TestBuildAnalyzerNeedsOnlyModel(t *testing.T) {
	t.Parallel()

	cfg := config.Default(t.TempDir())
	analyzer, err := buildAnalyzer(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, analyzer.Speakers)
	require.Nil(t, analyzer.Transcriber)

	cfg.LLM.Model = ""
	_, err = buildAnalyzer(cfg, nil)
	require.ErrorContains(t, err, "llm.model")
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/fmueller/meetingagent/internal/report"
	"github.com/fmueller/meetingagent/internal/transcribe"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProcessCmd(app *appState) *cobra.Command {
	var meetingID string

	cmd := &cobra.Command{
		Use:   "process <audio-file>",
		Short: "Transcribe a recording, write minutes and create calendar events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.runPipeline(cmd.Context(), pipeline.Request{AudioPath: args[0], MeetingID: meetingID})
			if err != nil {
				return err
			}

			f := report.NewFormatter(app.outWriter())
			app.saveOutputs(f, result)
			f.Summary(result)
			return runError(result)
		},
	}

	cmd.Flags().StringVar(&meetingID, "meeting-id", "", "Meeting id to use instead of a generated one")
	bindPipelineFlags(cmd, app)
	bindCalendarFlags(cmd, app)
	return cmd
}

func newMinutesCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minutes <audio-file>",
		Short: "Transcribe a recording and print its minutes without creating events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.runPipeline(cmd.Context(), pipeline.Request{AudioPath: args[0], Until: meeting.StageExtractingMinutes})
			if err != nil {
				return err
			}

			f := report.NewFormatter(cmd.ErrOrStderr())
			app.saveOutputs(f, result)
			if result.Minutes != nil {
				if err := report.WriteMinutesMarkdown(app.outWriter(), result); err != nil {
					return err
				}
			}
			reportProblems(f, result)
			return runError(result)
		},
	}

	bindPipelineFlags(cmd, app)
	cmd.Flags().Float64Var(&app.overrides.eventThreshold, "event-threshold", 0, "Minimum confidence for an event to be proposed")
	return cmd
}

func newEventsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events <audio-file>",
		Short: "Process a recording and report the calendar events it produced",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.runPipeline(cmd.Context(), pipeline.Request{AudioPath: args[0]})
			if err != nil {
				return err
			}

			f := report.NewFormatter(app.outWriter())
			app.saveOutputs(f, result)
			f.Events(result)
			return runError(result)
		},
	}

	bindPipelineFlags(cmd, app)
	bindCalendarFlags(cmd, app)
	return cmd
}

func newTranscriptCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript <audio-file>",
		Short: "Transcribe a recording with speaker labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.runPipeline(cmd.Context(), pipeline.Request{AudioPath: args[0], Until: meeting.StageTranscribing})
			if err != nil {
				return err
			}

			f := report.NewFormatter(cmd.ErrOrStderr())
			if result.Transcript != nil {
				if err := transcribe.WriteText(app.outWriter(), result.Transcript); err != nil {
					return err
				}
			}
			app.saveOutputs(f, result)
			reportProblems(f, result)
			return runError(result)
		},
	}

	bindPipelineFlags(cmd, app)
	return cmd
}

func (a *appState) runPipeline(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	rt, err := a.runtimeFn(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			a.log().Warn("failed to close history store", zap.Error(err))
		}
	}()

	progress := newStageProgress(a.progressEnabled())
	rt.pipeline.OnStage = progress.observe
	result := rt.pipeline.Run(ctx, req)
	progress.stop()
	return result, nil
}

// saveOutputs writes whatever artifacts the run produced. Failures are
// reported but never turn a successful run into a failed one.
func (a *appState) saveOutputs(f *report.Formatter, result *pipeline.Result) {
	if result.Transcript != nil {
		path, err := writeOutput(a.cfg.Output.TranscriptsDir, result.MeetingID+".txt", func(file *os.File) error {
			return transcribe.WriteText(file, result.Transcript)
		})
		if err != nil {
			f.Warning(fmt.Sprintf("could not save transcript: %v", err))
		} else if path != "" {
			f.Saved("Transcript", path)
		}
	}

	if result.Minutes != nil {
		path, err := writeOutput(a.cfg.Output.MinutesDir, result.MeetingID+".md", func(file *os.File) error {
			return report.WriteMinutesMarkdown(file, result)
		})
		if err != nil {
			f.Warning(fmt.Sprintf("could not save minutes: %v", err))
		} else if path != "" {
			f.Saved("Minutes", path)
		}
	}
}

// writeOutput is a no-op when dir is empty.
func writeOutput(dir, name string, write func(*os.File) error) (string, error) {
	if dir == "" {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return "", err
	}
	return path, file.Close()
}

func reportProblems(f *report.Formatter, result *pipeline.Result) {
	for _, e := range result.Errors {
		f.Warning(e.Error())
	}
}

func runError(result *pipeline.Result) error {
	if !result.Failed() {
		return nil
	}
	return fmt.Errorf("meeting %s failed: %w", result.MeetingID, result.Err())
}

package cli

import (
	"errors"
	"fmt"

	"github.com/fmueller/meetingagent/internal/meeting"
	"github.com/fmueller/meetingagent/internal/report"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <transcript-file>",
		Short: "Identify speaker names in a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analyzer, err := app.analyzerFn()
			if err != nil {
				return err
			}

			f := report.NewFormatter(app.outWriter())
			f.Processing("Analyzing transcript", args[0])

			stop := startSpinner(app.progressEnabled(), "Identifying speakers")
			transcript, identity, err := analyzer.AnalyzeTranscript(cmd.Context(), args[0])
			stop()
			if transcript == nil {
				return err
			}

			var resErr *meeting.SpeakerResolutionError
			if errors.As(err, &resErr) {
				f.Warning(fmt.Sprintf("speaker names may be incomplete: %v", resErr))
			} else if err != nil {
				return err
			}

			f.Speakers(identity)
			fmt.Fprintln(app.outWriter())
			for _, u := range transcript.Utterances {
				fmt.Fprintf(app.outWriter(), "[%s] %s: %s\n", meeting.FormatClock(u.Start), identity.DisplayName(u.Speaker), u.Text)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&app.overrides.llmModel, "llm-model", "", "Language model used for speaker identification")
	cmd.Flags().StringVar(&app.overrides.llmBaseURL, "llm-base-url", "", "OpenAI-compatible endpoint, e.g. http://localhost:11434/v1")
	return cmd
}

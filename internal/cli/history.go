package cli

import (
	"errors"
	"fmt"

	"github.com/fmueller/meetingagent/internal/report"
	"github.com/fmueller/meetingagent/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newHistoryCmd(app *appState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [meeting-id]",
		Short: "List processed meetings or show one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := app.historyFn(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				if err := history.Close(); err != nil {
					app.log().Warn("failed to close history store", zap.Error(err))
				}
			}()

			f := report.NewFormatter(app.outWriter())
			if len(args) == 0 {
				summaries, err := history.List(cmd.Context(), limit)
				if err != nil {
					return fmt.Errorf("list meetings: %w", err)
				}
				f.History(summaries)
				return nil
			}

			result, err := history.Get(cmd.Context(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no meeting with id %q", args[0])
			}
			if err != nil {
				return err
			}
			f.Summary(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of meetings to list")
	return cmd
}

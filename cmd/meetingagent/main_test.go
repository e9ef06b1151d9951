package main

import (
	"errors"
	"testing"

	"github.com/fmueller/meetingagent/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"meetingagent\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldPrintUsageHint(errors.New("meeting meeting_1 failed: transcribing: transcription failed (timeout)")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestShouldPrintConfigHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintConfigHint(errors.New("invalid configuration:\n  - llm.model is required")))
	require.False(t, shouldPrintConfigHint(errors.New("unknown flag: --oops")))
	require.False(t, shouldPrintConfigHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "meetingagent", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "meetingagent", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "meetingagent process", helpHintTarget(root, []string{"process"}))
	require.Equal(t, "meetingagent history", helpHintTarget(root, []string{"history", "--limit", "5"}))
}

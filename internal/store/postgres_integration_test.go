//go:build integration

package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fmueller/meetingagent/internal/pipeline"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv("MEETINGAGENT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEETINGAGENT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()

	id := "meeting_it_" + uuid.NewString()[:8]
	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Record(ctx, sampleResult(id, started, pipeline.StatusCompleted)))
	require.NoError(t, s.Record(ctx, sampleResult(id, started, pipeline.StatusFailed)))

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusFailed, got.Status)

	list, err := s.List(ctx, 50)
	require.NoError(t, err)
	found := false
	for _, summary := range list {
		if summary.MeetingID == id {
			found = true
			require.Equal(t, 42*time.Second, summary.ProcessingTime)
		}
	}
	require.True(t, found)

	_, err = s.Get(ctx, "meeting_missing_"+uuid.NewString())
	require.ErrorIs(t, err, ErrNotFound)
}

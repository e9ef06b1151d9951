package calendar

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestICSServiceAppendsEvents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "calendar", "meetings.ics")
	svc := &ICSService{Path: path, Now: func() time.Time { return at(8) }}

	first, err := svc.Insert(context.Background(), Request{
		Title:       "Sprint review",
		Description: "Review sprint results",
		Location:    "Room 4",
		Start:       at(14),
		End:         at(15),
		Attendees:   []string{"sarah@example.com", "John Smith"},
	})
	require.NoError(t, err)
	_, err = uuid.Parse(first.ID)
	require.NoError(t, err)

	second, err := svc.Insert(context.Background(), Request{Title: "Retro", Start: at(16), End: at(17)})
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(raw), "BEGIN:VCALENDAR"))
	require.Contains(t, string(raw), "PRODID:"+icsProductID)
	require.Contains(t, string(raw), "UID:"+first.ID)

	events, err := ReadICS(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "Sprint review", events[0].Title)
	require.Equal(t, "Room 4", events[0].Location)
	require.True(t, at(14).Equal(events[0].Start))
	require.True(t, at(15).Equal(events[0].End))
	require.Equal(t, []string{"sarah@example.com"}, events[0].Attendees)
	require.Equal(t, "Retro", events[1].Title)
}

func TestICSServiceRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := (&ICSService{}).Insert(context.Background(), Request{Title: "x", Start: at(9), End: at(10)})
	require.Error(t, err)
}

func TestICSServiceRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.ics")
	require.NoError(t, os.WriteFile(path, []byte("<html>not a calendar</html>"), 0o644))

	_, err := (&ICSService{Path: path}).Insert(context.Background(), Request{Title: "x", Start: at(9), End: at(10)})
	require.Error(t, err)
}

package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStorePutGet(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "transcripts/abc.json", []byte(`{"ok":true}`), "application/json"))

	data, err := store.Get(ctx, "transcripts/abc.json")
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(data))

	_, err = store.Get(ctx, "transcripts/missing.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.Error(t, store.Put(context.Background(), "../outside.json", []byte("x"), ""))
	require.Error(t, store.Put(context.Background(), "/etc/passwd", []byte("x"), ""))
}

func TestFileSHA256(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "meeting.wav")
	payload := []byte("meeting audio")
	require.NoError(t, os.WriteFile(path, payload, 0o644))

	sum := sha256.Sum256(payload)
	got, err := FileSHA256(path)
	require.NoError(t, err)
	require.Equal(t, hex.EncodeToString(sum[:]), got)

	_, err = FileSHA256(filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
}

package platform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataDirForLinuxWithXDG(t *testing.T) {
	t.Parallel()

	dir, err := DataDirFor("linux", "/home/dev", "/tmp/xdg-data")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-data/meetingagent", dir)
}

func TestDataDirForLinuxWithoutXDG(t *testing.T) {
	t.Parallel()

	dir, err := DataDirFor("linux", "/home/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.local/share/meetingagent", dir)
}

func TestDataDirForMacOS(t *testing.T) {
	t.Parallel()

	dir, err := DataDirFor("darwin", "/Users/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/Users/dev/Library/Application Support/meetingagent", dir)
}

func TestDataDirForUnsupportedOS(t *testing.T) {
	t.Parallel()

	_, err := DataDirFor("windows", "/Users/dev", "")
	require.Error(t, err)
}

func TestConfigFileFor(t *testing.T) {
	t.Parallel()

	path, err := ConfigFileFor("/home/dev", "")
	require.NoError(t, err)
	require.Equal(t, "/home/dev/.config/meetingagent/config.toml", path)

	path, err = ConfigFileFor("", "/tmp/xdg-config")
	require.NoError(t, err)
	require.Equal(t, "/tmp/xdg-config/meetingagent/config.toml", path)

	_, err = ConfigFileFor("", "")
	require.Error(t, err)
}

func TestResolveDataDirOverride(t *testing.T) {
	t.Parallel()

	dir, err := ResolveDataDir("/srv/meetings/../agent/")
	require.NoError(t, err)
	require.Equal(t, "/srv/agent", dir)
}

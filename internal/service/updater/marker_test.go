package updater

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireMarker_WritesAndReleases(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	m, err := acquireMarker(context.Background(), root)
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(root, MarkerFilename))
	require.NoError(t, err)
	require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(contents))

	m.release(context.Background())
	require.NoFileExists(t, filepath.Join(root, MarkerFilename))
}

// TestAcquireMarker_LiveProcess refuses to start while the marker names a running updater.
func TestAcquireMarker_LiveProcess(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	path := filepath.Join(root, MarkerFilename)
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	_, err := acquireMarker(context.Background(), root)
	require.ErrorIs(t, err, errUpdaterAlreadyRunning)
	require.FileExists(t, path)
}

// TestAcquireMarker_ReplacesStaleMarker takes over markers of dead processes and garbage.
func TestAcquireMarker_ReplacesStaleMarker(t *testing.T) {
	t.Parallel()

	for _, contents := range []string{"2147483000\n", "not a pid", ""} {
		root := t.TempDir()
		path := filepath.Join(root, MarkerFilename)
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

		m, err := acquireMarker(context.Background(), root)
		require.NoError(t, err, contents)

		written, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, strconv.Itoa(os.Getpid())+"\n", string(written))

		m.release(context.Background())
	}
}

// TestRelease_KeepsForeignMarker does not delete a marker that another process took over.
func TestRelease_KeepsForeignMarker(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	m, err := acquireMarker(context.Background(), root)
	require.NoError(t, err)

	path := filepath.Join(root, MarkerFilename)
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	m.release(context.Background())
	require.FileExists(t, path)
}

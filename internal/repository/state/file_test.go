package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFileRepository_NotFound verifies Load returns ErrNotFound for a missing or empty file.
func TestFileRepository_NotFound(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := NewVersionMarker(dir).Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FingerprintFilename), []byte("\n"), 0o600))

	_, err = NewFingerprint(dir).Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestFileRepository_SaveLoad ensures values are stored as one line and overwritten in place.
func TestFileRepository_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	marker := NewVersionMarker(dir)

	require.NoError(t, marker.Save(context.Background(), "v1.1.0"))
	require.NoError(t, marker.Save(context.Background(), "v1.2.0"))

	got, err := marker.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "v1.2.0", got)

	raw, err := os.ReadFile(marker.Path())
	require.NoError(t, err)
	require.Equal(t, "v1.2.0\n", string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files must be left behind")
}

// TestFileRepository_RejectsMultiline guards the single-line format.
func TestFileRepository_RejectsMultiline(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "record"))
	require.ErrorIs(t, repo.Save(context.Background(), "a\nb"), errMultiline)
}

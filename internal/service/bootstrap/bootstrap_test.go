package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
)

// fakeRunner simulates `python -m venv` by creating the sandbox directory.
type fakeRunner struct {
	calls []string
	err   error
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	if f.err != nil {
		return []byte("no python"), f.err
	}

	sandbox := filepath.Join(dir, SandboxDirname)
	if err := os.MkdirAll(sandbox, 0o755); err != nil {
		return nil, err
	}

	return nil, os.WriteFile(filepath.Join(sandbox, "pyvenv.cfg"), []byte("home = /usr/bin\n"), 0o644)
}

func newTestConfig(root string) *config.Config {
	return &config.Config{
		RootDirectory:    root,
		Owner:            "bluecity",
		Token:            "token",
		PythonExecutable: "python3",
		CommandTimeout:   time.Minute,
		Secrets:          map[string]string{"zeta": "z", "alpha": "a"},
	}
}

func snapshot(t *testing.T, dir string) map[string]string {
	t.Helper()

	files := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		files[path] = string(data)

		return nil
	})
	require.NoError(t, err)

	return files
}

// TestEnsure_Idempotent runs the bootstrapper twice and expects identical files and one venv call.
func TestEnsure_Idempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "git-commit")
	runner := new(fakeRunner)
	b := New(newTestConfig(root), runner)

	require.NoError(t, b.Ensure(context.Background(), dir))

	first := snapshot(t, dir)

	require.NoError(t, b.Ensure(context.Background(), dir))
	require.Equal(t, first, snapshot(t, dir))
	require.Equal(t, []string{"python3 -m venv .venv"}, runner.calls)

	for _, name := range []string{IgnoreFilename, SecretsFilename, ManifestFilename} {
		require.FileExists(t, filepath.Join(dir, name))
	}

	secrets := first[filepath.Join(dir, SecretsFilename)]
	require.Contains(t, secrets, "GITHUB_USERNAME=bluecity\n")
	require.Contains(t, secrets, "BASE_DIRECTORY="+root+"\n")
	require.Less(t, strings.Index(secrets, "ALPHA='a'"), strings.Index(secrets, "ZETA='z'"))
}

// TestEnsure_KeepsExistingFiles verifies nothing is overwritten.
func TestEnsure_KeepsExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := filepath.Join(dir, ManifestFilename)
	require.NoError(t, os.WriteFile(manifest, []byte("numpy==2.0\n"), 0o644))

	require.NoError(t, New(newTestConfig(dir), new(fakeRunner)).Ensure(context.Background(), dir))

	data, err := os.ReadFile(manifest)
	require.NoError(t, err)
	require.Equal(t, "numpy==2.0\n", string(data))
}

// TestEnsure_SandboxFailureStopsLaterSteps checks that secrets and manifest are not written.
func TestEnsure_SandboxFailureStopsLaterSteps(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	runner := &fakeRunner{err: errors.New("exit status 1")}

	err := New(newTestConfig(dir), runner).Ensure(context.Background(), dir)
	require.Error(t, err)
	require.True(t, fleet.IsKind(err, fleet.KindBootstrap))

	require.FileExists(t, filepath.Join(dir, IgnoreFilename))
	require.NoFileExists(t, filepath.Join(dir, SecretsFilename))
	require.NoFileExists(t, filepath.Join(dir, ManifestFilename))
}

// TestSandboxPython points inside the sandbox.
func TestSandboxPython(t *testing.T) {
	t.Parallel()

	require.True(t, strings.HasPrefix(SandboxPython("/srv/pkg"), filepath.Join("/srv/pkg", SandboxDirname)))
}

package updater

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/fleet-updater/internal/logger"
)

// MarkerFilename marks that the updater is running right now to avoid parallel execution.
// It lives in the root directory and holds the PID of the running updater.
const MarkerFilename = ".fleet-updater.pid"

const markerFileMode os.FileMode = 0o644

var errUpdaterAlreadyRunning = errors.New("the updater is already running")

// runMarker is the PID file guarding the root directory.
type runMarker struct {
	path string
}

// acquireMarker creates the run marker. A marker left by a process that is
// gone, or by a different program reusing the PID, is stale and replaced.
func acquireMarker(ctx context.Context, root string) (*runMarker, error) {
	m := &runMarker{
		path: filepath.Join(root, MarkerFilename),
	}

	logger.Info(ctx, "Checking for the presence of a run marker")

	running, err := m.heldByLiveUpdater()
	if err != nil {
		return nil, err
	}

	if running {
		return nil, fmt.Errorf("%s: %w", m.path, errUpdaterAlreadyRunning)
	}

	if err = os.Remove(m.path); err == nil {
		logger.Info(ctx, "Removed a stale run marker")
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale run marker: %w", err)
	}

	file, err := os.OpenFile(m.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, markerFileMode)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%s: %w", m.path, errUpdaterAlreadyRunning)
		}

		return nil, fmt.Errorf("create run marker: %w", err)
	}

	_, err = file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(m.path)
		return nil, fmt.Errorf("write run marker: %w", err)
	}

	return m, nil
}

// heldByLiveUpdater reports whether the marker names a running process with our executable name.
func (m *runMarker) heldByLiveUpdater() (bool, error) {
	contents, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("read run marker: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(contents)))
	if err != nil || pid <= 0 {
		return false, nil //nolint:nilerr // An unreadable PID is a stale marker.
	}

	process, err := ps.FindProcess(pid)
	if err != nil || process == nil {
		return false, nil //nolint:nilerr // A process we cannot inspect is treated as gone.
	}

	self, err := ps.FindProcess(os.Getpid())
	if err != nil || self == nil {
		return true, nil //nolint:nilerr // Without our own name, any live PID counts.
	}

	return process.Executable() == self.Executable(), nil
}

// release removes the marker if it still belongs to this process.
func (m *runMarker) release(ctx context.Context) {
	contents, err := os.ReadFile(m.path)
	if err != nil {
		return
	}

	if strings.TrimSpace(string(contents)) != strconv.Itoa(os.Getpid()) {
		logger.Warn(ctx, "The run marker was replaced by another process, leaving it")
		return
	}

	if err = os.Remove(m.path); err != nil {
		logger.Warnf(ctx, "Failed to remove the run marker: %v", err)
	}
}

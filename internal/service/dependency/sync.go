package dependency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/repository/state"
	"github.com/oshokin/fleet-updater/internal/service/bootstrap"
	"github.com/oshokin/fleet-updater/internal/service/common"
)

// Result tells whether an install happened.
type Result string

const (
	// ResultUnchanged means the manifest matches the fingerprint and nothing ran.
	ResultUnchanged Result = "unchanged"
	// ResultInstalled means the install succeeded and the fingerprint was updated.
	ResultInstalled Result = "installed"
)

const opSync = "sync dependencies"

var errManifestMissing = errors.New("manifest missing")

// Synchronizer compares the manifest digest with the stored fingerprint
// and runs the installer inside the package sandbox when they differ.
type Synchronizer struct {
	runner common.Runner
}

// New creates a Synchronizer.
func New(runner common.Runner) *Synchronizer {
	return &Synchronizer{
		runner: runner,
	}
}

// Sync installs the manifest of the package in dir if it changed.
// The fingerprint is written only after a successful install, so a failed
// install is retried on the next run.
func (s *Synchronizer) Sync(ctx context.Context, dir string) (Result, error) {
	manifest := filepath.Join(dir, bootstrap.ManifestFilename)

	digest, err := Digest(manifest)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fleet.Wrap(fleet.KindDependency, opSync, fmt.Errorf("%s: %w", manifest, errManifestMissing))
		}

		return "", fleet.Wrap(fleet.KindDependency, opSync, err)
	}

	fingerprint := state.NewFingerprint(dir)

	previous, err := fingerprint.Load(ctx)
	if err != nil && !errors.Is(err, state.ErrNotFound) {
		return "", fleet.Wrap(fleet.KindDependency, opSync, err)
	}

	if previous == digest {
		logger.Debug(ctx, "Dependency manifest unchanged")
		return ResultUnchanged, nil
	}

	logger.Info(ctx, "Dependency manifest changed, installing")

	output, err := s.runner.Run(ctx, dir,
		bootstrap.SandboxPython(dir), "-m", "pip", "install", "-r", bootstrap.ManifestFilename)
	if err != nil {
		return "", fleet.Wrap(fleet.KindDependency, opSync, err)
	}

	logger.Debugf(ctx, "Installer output: %s", output)

	if err = fingerprint.Save(ctx, digest); err != nil {
		return "", fleet.Wrap(fleet.KindDependency, opSync, fmt.Errorf("save fingerprint: %w", err))
	}

	return ResultInstalled, nil
}

// Digest returns the lowercase hex SHA-256 of the file at path.
func Digest(path string) (string, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err = io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

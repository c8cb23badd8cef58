package state

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/service/common"
)

const (
	// VersionMarkerFilename stores the last installed release tag of a package.
	VersionMarkerFilename = ".fleet-version"
	// FingerprintFilename stores the SHA-256 of the last installed dependency manifest.
	FingerprintFilename = ".requirements_hash"
)

// Repository reads and writes one single-value state record.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, value string) error
}

// FileRepository keeps a single line of text in a file inside a package directory.
// Writes replace the file atomically so a crash never leaves a truncated record.
type FileRepository struct {
	// path is the filesystem location of the record.
	path string
}

var (
	// ErrNotFound is returned when the record does not exist yet.
	ErrNotFound = errors.New("state not found")

	errMultiline = errors.New("state value must be a single line")
)

// NewFileRepository creates a repository for the record at path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// NewVersionMarker returns the version marker of the package in dir.
func NewVersionMarker(dir string) *FileRepository {
	return NewFileRepository(filepath.Join(dir, VersionMarkerFilename))
}

// NewFingerprint returns the dependency fingerprint of the package in dir.
func NewFingerprint(dir string) *FileRepository {
	return NewFileRepository(filepath.Join(dir, FingerprintFilename))
}

// Path returns the location of the record.
func (r *FileRepository) Path() string {
	return r.path
}

// Load returns the stored value without surrounding whitespace.
// An empty file is treated like a missing one.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("read state file: %w", err)
	}

	value := strings.TrimSpace(string(contents))
	if value == "" {
		return "", ErrNotFound
	}

	return value, nil
}

// Save atomically replaces the record with value.
func (r *FileRepository) Save(_ context.Context, value string) error {
	value = strings.TrimSpace(value)
	if strings.ContainsAny(value, "\r\n") {
		return errMultiline
	}

	data := bytes.NewBufferString(value + "\n")
	if err := common.ReplaceFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

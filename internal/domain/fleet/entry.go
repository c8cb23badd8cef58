package fleet

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Mode selects the update strategy applied to a package.
type Mode string

const (
	// ModeVCSSync keeps a git checkout in sync with its upstream branch.
	ModeVCSSync Mode = "vcs_sync"
	// ModeArchiveReplace re-downloads the release archive and extracts it over the package.
	ModeArchiveReplace Mode = "archive_replace"
)

var (
	errEmptyName       = errors.New("package name is empty")
	errEmptyRepository = errors.New("repository is empty")
	errInvalidName     = errors.New("package name must be a single directory name")
	errUnknownMode     = errors.New("unknown tracking mode")
	errDuplicateName   = errors.New("duplicate package name")
)

// Valid reports whether the mode is one of the known strategies.
func (m Mode) Valid() bool {
	return m == ModeVCSSync || m == ModeArchiveReplace
}

// Entry is one row of the package registry.
type Entry struct {
	// Name is the local directory name under the root directory.
	Name string `yaml:"name"`
	// Repository is the remote repository name under the configured owner.
	Repository string `yaml:"repository"`
	// Mode selects the update strategy.
	Mode Mode `yaml:"mode"`
}

// Validate checks a single entry.
func (e *Entry) Validate() error {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return errEmptyName
	}

	if name != e.Name || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%q: %w", e.Name, errInvalidName)
	}

	if strings.TrimSpace(e.Repository) == "" {
		return fmt.Errorf("%s: %w", e.Name, errEmptyRepository)
	}

	if !e.Mode.Valid() {
		return fmt.Errorf("%s: %q: %w", e.Name, e.Mode, errUnknownMode)
	}

	return nil
}

// Registry is the ordered, static list of tracked packages.
type Registry []Entry

// Validate checks every entry and rejects duplicate names.
func (r Registry) Validate() error {
	seen := make(map[string]struct{}, len(r))

	for i := range r {
		if err := r[i].Validate(); err != nil {
			return err
		}

		if _, found := seen[r[i].Name]; found {
			return fmt.Errorf("%s: %w", r[i].Name, errDuplicateName)
		}

		seen[r[i].Name] = struct{}{}
	}

	return nil
}

// Find returns the entry named name.
func (r Registry) Find(name string) (*Entry, bool) {
	for i := range r {
		if r[i].Name == name {
			return &r[i], true
		}
	}

	return nil, false
}

// Release is the latest published version of a remote repository.
type Release struct {
	// Tag is the opaque version identifier. Compared by exact string equality.
	Tag string
	// ArchiveURL points to the zip archive of the release sources.
	ArchiveURL string
}

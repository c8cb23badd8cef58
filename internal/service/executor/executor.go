package executor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/service/common"
)

var errUnknownMode = errors.New("unknown tracking mode")

// Executor applies a release to a package directory with the strategy
// selected by the package's tracking mode.
type Executor struct {
	cfg     *config.Config
	runner  common.Runner
	client  *http.Client
	cloner  Cloner
	tempDir string
}

// Option configures an Executor.
type Option func(*Executor)

// WithCloner replaces the go-git cloner.
func WithCloner(cloner Cloner) Option {
	return func(e *Executor) {
		if cloner != nil {
			e.cloner = cloner
		}
	}
}

// WithTempDir sets where archives are downloaded. Defaults to the system temp directory.
func WithTempDir(dir string) Option {
	return func(e *Executor) {
		e.tempDir = dir
	}
}

// New creates an Executor. The runner drives git, the client downloads archives.
func New(cfg *config.Config, runner common.Runner, client *http.Client, opts ...Option) *Executor {
	e := &Executor{
		cfg:    cfg,
		runner: runner,
		client: client,
		cloner: NewGitCloner(cfg.Token),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Prepare creates the directory of a package seen for the first time:
// vcs_sync packages are cloned, archive_replace packages get an empty directory.
func (e *Executor) Prepare(ctx context.Context, entry *fleet.Entry, dir string) error {
	switch entry.Mode {
	case fleet.ModeVCSSync:
		if err := e.cloner.Clone(ctx, e.cloneURL(entry), dir); err != nil {
			return fleet.Wrap(fleet.KindBootstrap, "clone repository", err)
		}

		return nil
	case fleet.ModeArchiveReplace:
		if err := os.MkdirAll(dir, common.DefaultDirMode); err != nil {
			return fleet.Wrap(fleet.KindBootstrap, "create package directory", err)
		}

		return nil
	default:
		return fleet.Wrap(fleet.KindConfiguration, "prepare package", fmt.Errorf("%q: %w", entry.Mode, errUnknownMode))
	}
}

// Apply brings the package in dir to release. It never touches the version
// marker; the caller records the new version only after Apply succeeded.
func (e *Executor) Apply(ctx context.Context, entry *fleet.Entry, dir string, release fleet.Release) error {
	switch entry.Mode {
	case fleet.ModeVCSSync:
		return e.syncVCS(ctx, dir)
	case fleet.ModeArchiveReplace:
		return e.replaceFromArchive(ctx, entry, dir, release)
	default:
		return fleet.Wrap(fleet.KindConfiguration, "apply update", fmt.Errorf("%q: %w", entry.Mode, errUnknownMode))
	}
}

func (e *Executor) cloneURL(entry *fleet.Entry) string {
	return fmt.Sprintf("%s/%s/%s.git", e.cfg.WebURL, url.PathEscape(e.cfg.Owner), url.PathEscape(entry.Repository))
}

// archiveURL prefers the URL reported with the release and falls back to the tag archive.
func (e *Executor) archiveURL(entry *fleet.Entry, release fleet.Release) string {
	if release.ArchiveURL != "" {
		return release.ArchiveURL
	}

	return fmt.Sprintf("%s/%s/%s/archive/refs/tags/%s.zip",
		e.cfg.WebURL, url.PathEscape(e.cfg.Owner), url.PathEscape(entry.Repository), url.PathEscape(release.Tag))
}

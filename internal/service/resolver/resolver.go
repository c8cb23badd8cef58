package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/repository/state"
	"github.com/oshokin/fleet-updater/internal/version"
)

// maxResponseSize caps the release document read from the API.
const maxResponseSize = 1 << 20

const opResolve = "resolve latest release"

var (
	errNoReleases     = errors.New("repository has no published releases")
	errBadHTTPStatus  = errors.New("unexpected http status")
	errInvalidPayload = errors.New("invalid release document")
)

// Resolver asks GitHub for the latest release of a repository and compares
// it with the version marker stored next to the package.
type Resolver struct {
	cfg    *config.Config
	client *http.Client
}

// New creates a Resolver using client for every API call.
func New(cfg *config.Config, client *http.Client) *Resolver {
	return &Resolver{
		cfg:    cfg,
		client: client,
	}
}

// Latest performs one GET of the "latest release" endpoint. A repository
// without releases yields a no_releases error, everything else that goes wrong
// is a transport error. There is no retry.
func (r *Resolver) Latest(ctx context.Context, repository string) (fleet.Release, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest",
		r.cfg.APIURL, url.PathEscape(r.cfg.Owner), url.PathEscape(repository))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fleet.Release{}, fleet.Wrap(fleet.KindTransport, opResolve, err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := r.client.Do(req)
	if err != nil {
		return fleet.Release{}, fleet.Wrap(fleet.KindTransport, opResolve, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fleet.Release{}, fleet.Wrap(fleet.KindNoReleases, opResolve,
			fmt.Errorf("%s/%s: %w", r.cfg.Owner, repository, errNoReleases))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fleet.Release{}, fleet.Wrap(fleet.KindTransport, opResolve,
			fmt.Errorf("%s, %s: %w", endpoint, resp.Status, errBadHTTPStatus))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fleet.Release{}, fleet.Wrap(fleet.KindTransport, opResolve, err)
	}

	if !gjson.ValidBytes(body) {
		return fleet.Release{}, fleet.Wrap(fleet.KindTransport, opResolve, errInvalidPayload)
	}

	tag := gjson.GetBytes(body, "tag_name").String()
	if tag == "" {
		return fleet.Release{}, fleet.Wrap(fleet.KindTransport, opResolve,
			fmt.Errorf("tag_name is missing: %w", errInvalidPayload))
	}

	return fleet.Release{
		Tag:        tag,
		ArchiveURL: gjson.GetBytes(body, "zipball_url").String(),
	}, nil
}

// Check resolves the latest release of repository and reports whether the
// package in dir needs it. A missing marker always means an update is due.
func (r *Resolver) Check(ctx context.Context, repository, dir string) (fleet.Release, bool, error) {
	release, err := r.Latest(ctx, repository)
	if err != nil {
		return fleet.Release{}, false, err
	}

	stored, err := state.NewVersionMarker(dir).Load(ctx)

	switch {
	case errors.Is(err, state.ErrNotFound):
		logger.InfoKV(ctx, "No local version recorded, update needed", "remote", release.Tag)
		return release, true, nil
	case err != nil:
		return fleet.Release{}, false, fleet.Wrap(fleet.KindSync, "read version marker", err)
	case stored != release.Tag:
		logger.InfoKV(ctx, "Version mismatch detected", "local", stored, "remote", release.Tag)
		return release, true, nil
	default:
		logger.InfoKV(ctx, "Versions match", "version", stored)
		return release, false, nil
	}
}

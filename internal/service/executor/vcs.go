package executor

import (
	"context"
	"strings"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
)

// behindMarker is printed by `git status` when the local branch trails its upstream.
const behindMarker = "Your branch is behind"

const opSync = "sync repository"

// syncVCS fetches, inspects the status and pulls only when the branch is behind.
// A pull on an up-to-date branch can still fail on a dirty tree, so it is skipped.
func (e *Executor) syncVCS(ctx context.Context, dir string) error {
	logger.Info(ctx, "Fetching remote changes")

	if _, err := e.runner.Run(ctx, dir, "git", "fetch"); err != nil {
		return fleet.Wrap(fleet.KindSync, opSync, err)
	}

	status, err := e.runner.Run(ctx, dir, "git", "status", "-uno")
	if err != nil {
		return fleet.Wrap(fleet.KindSync, opSync, err)
	}

	if !strings.Contains(string(status), behindMarker) {
		logger.Info(ctx, "Local branch is current, nothing to pull")
		return nil
	}

	logger.Info(ctx, "Local branch is behind, pulling")

	if _, err = e.runner.Run(ctx, dir, "git", "pull", "--ff-only"); err != nil {
		return fleet.Wrap(fleet.KindSync, opSync, err)
	}

	return nil
}

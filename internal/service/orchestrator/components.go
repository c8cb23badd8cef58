package orchestrator

import (
	"context"

	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/service/dependency"
)

// Resolver finds the latest release and compares it with the installed one.
type Resolver interface {
	Check(ctx context.Context, repository, dir string) (fleet.Release, bool, error)
}

// Executor prepares new package directories and applies releases.
type Executor interface {
	Prepare(ctx context.Context, entry *fleet.Entry, dir string) error
	Apply(ctx context.Context, entry *fleet.Entry, dir string, release fleet.Release) error
}

// Bootstrapper provisions the runtime artifacts of a package directory.
type Bootstrapper interface {
	Ensure(ctx context.Context, dir string) error
}

// Synchronizer reinstalls dependencies when the manifest changed.
type Synchronizer interface {
	Sync(ctx context.Context, dir string) (dependency.Result, error)
}

// Notifier sends the batch of changed packages.
type Notifier interface {
	Send(ctx context.Context, names []string) error
}

// Escalator surfaces failures to a human.
type Escalator interface {
	Report(ctx context.Context, subject, detail string)
	Warn(ctx context.Context, subject, detail string)
}

// Components are the collaborators of a run. Notifier may be nil, the rest are required.
type Components struct {
	Resolver     Resolver
	Executor     Executor
	Bootstrapper Bootstrapper
	Synchronizer Synchronizer
	Notifier     Notifier
	Escalator    Escalator
}

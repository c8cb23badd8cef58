package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/oshokin/fleet-updater/internal/config"
	"github.com/oshokin/fleet-updater/internal/domain/fleet"
	"github.com/oshokin/fleet-updater/internal/logger"
	"github.com/oshokin/fleet-updater/internal/repository/state"
)

var (
	errNotDirectory = errors.New("package path exists but is not a directory")
	errPanicked     = errors.New("package cycle panicked")
)

// Orchestrator runs one update cycle over the registry. Packages are handled
// sequentially and a failure only ends the cycle of the package it belongs to.
type Orchestrator struct {
	cfg        *config.Config
	registry   fleet.Registry
	components Components
	now        func() time.Time
}

// Report is the result of one cycle.
type Report struct {
	// Started and Finished bound the cycle.
	Started  time.Time
	Finished time.Time
	// Outcomes has one entry per registry entry, in registry order.
	Outcomes []fleet.Outcome
	// Notified is set when the summary was sent.
	Notified bool
	// NotifyErr is the failure of the summary, if any.
	NotifyErr error
}

// New creates an Orchestrator.
func New(cfg *config.Config, registry fleet.Registry, components Components) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		registry:   registry,
		components: components,
		now:        time.Now,
	}
}

// Run processes every package once. The returned error is set only when
// the context ends the cycle early; package failures live in the report.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Started:  o.now(),
		Outcomes: make([]fleet.Outcome, 0, len(o.registry)),
	}

	for i := range o.registry {
		if err := ctx.Err(); err != nil {
			report.Finished = o.now()
			return report, fmt.Errorf("update cycle interrupted: %w", err)
		}

		entry := &o.registry[i]
		packageCtx := logger.WithKV(ctx, "package", entry.Name)

		outcome := o.processGuarded(packageCtx, entry)
		o.escalate(packageCtx, entry, &outcome)

		report.Outcomes = append(report.Outcomes, outcome)
	}

	o.notify(ctx, report)

	report.Finished = o.now()

	return report, nil
}

// processGuarded turns a panic in a collaborator into a failed outcome,
// so the remaining packages and the summary still run.
func (o *Orchestrator) processGuarded(ctx context.Context, entry *fleet.Entry) (outcome fleet.Outcome) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}

		logger.ErrorKV(ctx, "Package cycle panicked", "panic", recovered, "stack", string(debug.Stack()))

		outcome = fleet.Outcome{
			Name:   entry.Name,
			Status: fleet.StatusFailed,
			Err:    fmt.Errorf("%w: %v", errPanicked, recovered),
		}
	}()

	return o.process(ctx, entry)
}

// process runs the cycle of a single package. Provisioning runs on every
// cycle, so a package whose first provisioning failed is completed later.
func (o *Orchestrator) process(ctx context.Context, entry *fleet.Entry) fleet.Outcome {
	dir := o.cfg.PackageDir(entry.Name)
	outcome := fleet.Outcome{Name: entry.Name}

	fail := func(step fleet.State, err error) fleet.Outcome {
		logger.DebugKV(ctx, "Package failed", "state", fleet.StateFailed, "step", step)

		outcome.Status = fleet.StatusFailed
		outcome.Err = err

		return outcome
	}

	isNew, err := isMissing(dir)
	if err != nil {
		return fail(fleet.StateNew, fleet.Wrap(fleet.KindBootstrap, "inspect package directory", err))
	}

	if isNew {
		logger.InfoKV(ctx, "New package, provisioning", "state", fleet.StateNew, "directory", dir)

		if err = o.components.Executor.Prepare(ctx, entry, dir); err != nil {
			return fail(fleet.StateNew, err)
		}
	}

	if err = o.components.Bootstrapper.Ensure(ctx, dir); err != nil {
		return fail(fleet.StateNew, err)
	}

	logger.DebugKV(ctx, "Package provisioned", "state", fleet.StateBootstrapped)

	release, due, err := o.components.Resolver.Check(ctx, entry.Repository, dir)
	if err != nil {
		return fail(fleet.StateVersionChecked, err)
	}

	outcome.Version = release.Tag

	if due {
		logger.InfoKV(ctx, "Applying release", "state", fleet.StateUpdating, "version", release.Tag, "mode", entry.Mode)

		if err = o.components.Executor.Apply(ctx, entry, dir, release); err != nil {
			return fail(fleet.StateUpdating, err)
		}

		if err = state.NewVersionMarker(dir).Save(ctx, release.Tag); err != nil {
			return fail(fleet.StateUpdating, fleet.Wrap(fleet.KindSync, "record installed version", err))
		}

		outcome.Status = fleet.StatusUpdated
	} else {
		logger.DebugKV(ctx, "Package is current", "state", fleet.StateUpToDate)

		outcome.Status = fleet.StatusUpToDate
	}

	if isNew {
		outcome.Status = fleet.StatusBootstrapped
	}

	// Current packages go through the synchronizer too: it does nothing unless
	// the manifest was edited or the previous install failed.
	result, err := o.components.Synchronizer.Sync(ctx, dir)
	if err != nil {
		outcome.DependencyErr = err
	} else {
		logger.DebugKV(ctx, "Dependencies synchronized", "state", fleet.StateDependenciesSynced, "result", result)
	}

	logger.InfoKV(ctx, "Package done", "state", fleet.StateDone, "status", outcome.Status, "version", outcome.Version)

	return outcome
}

// escalate reports the failures of an outcome. A repository without releases is
// expected while a project is young and goes out as a warning.
func (o *Orchestrator) escalate(ctx context.Context, entry *fleet.Entry, outcome *fleet.Outcome) {
	if outcome.Err != nil {
		subject := subjectFor(fleet.KindOf(outcome.Err), entry.Name)
		detail := fmt.Sprintf("%s (%s/%s): %v", entry.Name, o.cfg.Owner, entry.Repository, outcome.Err)

		if fleet.IsKind(outcome.Err, fleet.KindNoReleases) {
			o.components.Escalator.Warn(ctx, subject, detail)
		} else {
			o.components.Escalator.Report(ctx, subject, detail)
		}
	}

	if outcome.DependencyErr != nil {
		o.components.Escalator.Report(ctx, subjectFor(fleet.KindDependency, entry.Name),
			fmt.Sprintf("%s: %v", entry.Name, outcome.DependencyErr))
	}
}

func (o *Orchestrator) notify(ctx context.Context, report *Report) {
	changed := report.Changed()
	if len(changed) == 0 {
		logger.Info(ctx, "No packages changed, nothing to notify")
		return
	}

	if o.components.Notifier == nil {
		logger.Warnf(ctx, "Notifications are disabled, changed packages: %v", changed)
		return
	}

	if err := o.components.Notifier.Send(ctx, changed); err != nil {
		report.NotifyErr = err
		o.components.Escalator.Report(ctx, "Failed to send update summary", err.Error())

		return
	}

	report.Notified = true
}

// Changed returns the names of updated and bootstrapped packages in registry order.
func (r *Report) Changed() []string {
	var names []string

	for i := range r.Outcomes {
		if r.Outcomes[i].Changed() {
			names = append(names, r.Outcomes[i].Name)
		}
	}

	return names
}

// Count returns how many outcomes have status.
func (r *Report) Count(status fleet.Status) int {
	total := 0

	for i := range r.Outcomes {
		if r.Outcomes[i].Status == status {
			total++
		}
	}

	return total
}

// Failed reports whether any package failed or a dependency step failed.
func (r *Report) Failed() bool {
	for i := range r.Outcomes {
		if r.Outcomes[i].Err != nil || r.Outcomes[i].DependencyErr != nil {
			return true
		}
	}

	return r.NotifyErr != nil
}

func isMissing(dir string) (bool, error) {
	info, err := os.Stat(dir)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return true, nil
	case err != nil:
		return false, err
	case !info.IsDir():
		return false, fmt.Errorf("%s: %w", dir, errNotDirectory)
	default:
		return false, nil
	}
}

func subjectFor(kind fleet.Kind, name string) string {
	switch kind {
	case fleet.KindNoReleases:
		return "No releases published for " + name
	case fleet.KindTransport:
		return "Release lookup failed for " + name
	case fleet.KindBootstrap:
		return "Provisioning failed for " + name
	case fleet.KindSync:
		return "Update failed for " + name
	case fleet.KindDependency:
		return "Dependency install failed for " + name
	default:
		return "Unexpected failure for " + name
	}
}

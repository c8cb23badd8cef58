package fleet

// Status is the per-run result of a package.
type Status string

const (
	// StatusBootstrapped means the package was new this run and has been provisioned and installed.
	StatusBootstrapped Status = "bootstrapped"
	// StatusUpToDate means the installed version already matches the latest release.
	StatusUpToDate Status = "up_to_date"
	// StatusUpdated means a newer release has been applied.
	StatusUpdated Status = "updated"
	// StatusFailed means the package was skipped for this run.
	StatusFailed Status = "failed"
)

// State is a step of the per-package state machine.
type State string

// Package states, in the order a successful update walks through them.
const (
	StateNew                State = "NEW"
	StateBootstrapped       State = "BOOTSTRAPPED"
	StateVersionChecked     State = "VERSION_CHECKED"
	StateUpToDate           State = "UP_TO_DATE"
	StateUpdating           State = "UPDATING"
	StateDependenciesSynced State = "DEPENDENCIES_SYNCED"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// Outcome is what happened to one package during a run. It lives for the run only.
type Outcome struct {
	// Name is the local package name.
	Name string
	// Status is the final status.
	Status Status
	// Version is the release tag that is installed after the run, if known.
	Version string
	// Err is the failure that stopped the package. Set only for StatusFailed.
	Err error
	// DependencyErr is set when the dependency step failed after a successful update.
	DependencyErr error
}

// Changed reports whether the package belongs in the notification batch.
func (o *Outcome) Changed() bool {
	return o.Status == StatusUpdated || o.Status == StatusBootstrapped
}

// Reason returns the failure kind for failed outcomes and an empty string otherwise.
func (o *Outcome) Reason() Kind {
	if o.Status != StatusFailed {
		return ""
	}

	return KindOf(o.Err)
}

// Package fleet holds the domain model of the updater: registry entries,
// tracking modes, releases, per-package outcomes and the error taxonomy
// shared by every service.
package fleet

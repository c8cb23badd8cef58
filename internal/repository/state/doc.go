// Package state persists the per-package state records: the version marker
// (last installed release tag) and the dependency fingerprint (hash of the
// last installed manifest).
//
// Each record is a plain-text file with a single line, stored inside the
// package directory and treated as the only source of truth.
package state

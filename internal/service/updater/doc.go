// Package updater wires the configuration, the package registry and the
// services into one update cycle, guarded by a run marker in the root directory.
//
// Run performs a full cycle and prints a summary; Bootstrap provisions a
// single package on demand.
package updater

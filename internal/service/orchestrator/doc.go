// Package orchestrator walks the package registry once, driving every package
// through bootstrap, version check, update and dependency sync, isolating
// failures per package and sending a single summary at the end.
package orchestrator

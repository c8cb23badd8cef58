// Package dependency reinstalls the Python dependencies of a package when
// its manifest differs from the one installed last time.
package dependency

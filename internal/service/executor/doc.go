// Package executor applies a release to a package directory, either by
// synchronizing a git working copy or by unpacking the release archive over it.
package executor

// Package resolver finds the latest published release of a repository through
// the GitHub REST API and decides whether a package needs updating by exact
// comparison with its stored version marker.
package resolver

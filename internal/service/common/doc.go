// Package common holds helpers shared by several services.
//
// It provides the subprocess Runner used for git, venv and pip commands, an
// atomic file replacement helper and detection of the current system actor
// (hostname/username) quoted in tickets.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

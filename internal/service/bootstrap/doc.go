// Package bootstrap provisions package directories: ignore list, launch
// script, isolated Python sandbox, secrets file and dependency manifest.
//
// The operation is idempotent. Nothing that already exists is overwritten.
package bootstrap

package fleet

import (
	"errors"
	"fmt"
)

// Kind classifies failures so the orchestrator can decide how loudly to report them.
type Kind string

const (
	// KindConfiguration is a missing or invalid setting. Fatal for the whole run.
	KindConfiguration Kind = "configuration_error"
	// KindTransport is a network or HTTP failure. Retried on the next run only.
	KindTransport Kind = "transport_error"
	// KindNoReleases means the repository has nothing published yet.
	KindNoReleases Kind = "no_releases"
	// KindBootstrap is a failure while provisioning a package directory.
	KindBootstrap Kind = "bootstrap_error"
	// KindSync is a VCS or archive apply failure.
	KindSync Kind = "sync_error"
	// KindDependency is a missing manifest or a failed install.
	KindDependency Kind = "dependency_error"
)

// Error carries a failure kind together with the operation that failed.
type Error struct {
	// Kind is the taxonomy class.
	Kind Kind
	// Op names the failed operation, e.g. "resolve latest release".
	Op string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}

	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindSync}) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}

	return other.Kind == e.Kind && other.Op == "" && other.Err == nil
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{
		Kind: kind,
		Op:   op,
		Err:  fmt.Errorf(format, args...),
	}
}

// Wrap attaches a kind to err. A nil err stays nil and an err that
// already carries a kind keeps it.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return &Error{
		Kind: kind,
		Op:   op,
		Err:  err,
	}
}

// KindOf returns the kind carried by err, or an empty Kind when there is none.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

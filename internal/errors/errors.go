// internal/errors/errors.go
package errors

import (
	"errors"
	"fmt"
)

// ErrInvalidRepoFormat is returned when a repository string in the config is not in 'owner/name' format.
type ErrInvalidRepoFormat struct {
	Repo string
}

func (e *ErrInvalidRepoFormat) Error() string {
	return fmt.Sprintf("invalid repository format: %q, expected 'owner/name'", e.Repo)
}

// FetchKind categorizes a remote API failure so the job runner can log it.
type FetchKind string

const (
	FetchKindAuth        FetchKind = "auth"
	FetchKindRateLimited FetchKind = "rate_limited"
	FetchKindNotFound    FetchKind = "not_found"
	FetchKindNetwork     FetchKind = "network"
)

// FetchError reports a failed remote API call. It always aborts the
// collection fetch it occurred in; partial pages are discarded by the caller.
type FetchError struct {
	Kind      FetchKind
	QueryName string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("remote fetch %s failed (%s): %v", e.QueryName, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchKind reports whether err is a FetchError of the given kind.
func IsFetchKind(err error, kind FetchKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}

// PersistenceError wraps a storage failure. It is propagated verbatim and
// never retried internally.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrNotImplemented marks a work unit that failed to provide its Execute
// behavior. It is a programming-contract violation and is never caught.
var ErrNotImplemented = errors.New("work unit does not implement Execute")

// Category returns the logging category for an error: one of the fetch
// kinds, "persistence_error", "not_implemented", or "unexpected_error".
func Category(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return "fetch_" + string(fe.Kind)
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return "persistence_error"
	}
	if errors.Is(err, ErrNotImplemented) {
		return "not_implemented"
	}
	return "unexpected_error"
}

// Package cerr defines the error taxonomy which is shared by all
// repository and transaction-manager implementations. Errors are
// tagged with one of three kinds so that callers can distinguish an
// absent entity, a row-mapping failure, and a driver or SQL failure
// without depending on any backend-specific error type.
package cerr

import (
	"errors"
	"fmt"
)

// Kind classifies a repository or transaction error.
type Kind int

const (
	// KindNotFound indicates that a required entity is absent.
	KindNotFound Kind = iota
	// KindMapping indicates a row to entity conversion failure.
	KindMapping
	// KindBackend indicates a driver, network, or SQL failure,
	// including failed transaction-control statements.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindMapping:
		return "mapping"
	case KindBackend:
		return "backend"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error wraps a cause error with a Kind tag. The cause is preserved
// unmodified and may be recovered with errors.Unwrap or errors.As.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Err.Error())
}

// NotFound tags err as a missing-entity error.
func NotFound(err error) *Error {
	return &Error{Kind: KindNotFound, Err: err}
}

// Mapping tags err as a row-mapping error.
func Mapping(err error) *Error {
	return &Error{Kind: KindMapping, Err: err}
}

// Backend tags err as a driver or SQL failure.
func Backend(err error) *Error {
	return &Error{Kind: KindBackend, Err: err}
}

// IsNotFound reports whether err carries the KindNotFound tag
// anywhere in its chain.
func IsNotFound(err error) bool {
	return is(err, KindNotFound)
}

// IsMapping reports whether err carries the KindMapping tag
// anywhere in its chain.
func IsMapping(err error) bool {
	return is(err, KindMapping)
}

// IsBackend reports whether err carries the KindBackend tag
// anywhere in its chain.
func IsBackend(err error) bool {
	return is(err, KindBackend)
}

func is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

package library

import (
	"errors"
	"fmt"
)

// ErrorKind classifies operation failures so the calling layer can map them to
// transport responses without parsing messages.
type ErrorKind int

const (
	// KindNotFound means the referenced entity does not exist.
	KindNotFound ErrorKind = iota + 1
	// KindInvalidState means the operation is not valid for the entity's
	// current state, e.g. renewing a returned loan.
	KindInvalidState
	// KindRejected means a business rule failed: ineligible patron,
	// unavailable book, duplicate identifier.
	KindRejected
	// KindLimitExceeded means a cap was hit: renewal limit, active-loan limit.
	KindLimitExceeded
	// KindOverPayment means a payment exceeds the amount owed.
	KindOverPayment
	// KindInventoryCorruption means a post-condition check found inconsistent
	// inventory counters. Indicates a prior consistency bug; the write is
	// aborted and manual reconciliation may be needed.
	KindInventoryCorruption
	// KindInternal means an unexpected or storage failure.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindRejected:
		return "rejected"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindOverPayment:
		return "over_payment"
	case KindInventoryCorruption:
		return "inventory_corruption"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is the structured error returned by every core operation. Message is
// always a plain-language reason suitable for relaying to the patron.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or 0 if err is not a library Error.
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool { return KindOf(err) == kind }

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func rejectedf(format string, args ...any) *Error {
	return &Error{Kind: KindRejected, Message: fmt.Sprintf(format, args...)}
}

func limitExceededf(format string, args ...any) *Error {
	return &Error{Kind: KindLimitExceeded, Message: fmt.Sprintf(format, args...)}
}

func overPaymentf(format string, args ...any) *Error {
	return &Error{Kind: KindOverPayment, Message: fmt.Sprintf(format, args...)}
}

func corruptionf(format string, args ...any) *Error {
	return &Error{Kind: KindInventoryCorruption, Message: fmt.Sprintf(format, args...)}
}

func internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Err: err}
}

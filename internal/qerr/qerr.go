// Package qerr defines the typed error kinds the QAPI core surfaces to
// callers, replacing the original implementation's distinct exception
// classes with a single error type carrying a Kind.
package qerr

import "fmt"

// Kind identifies the category of a QAPI error.
type Kind int

const (
	// KindLinkError is a transport-level failure. Requests affected by it
	// are retried by the retry thread while network_retry_timeout has not
	// elapsed, and surfaced to the caller after that.
	KindLinkError Kind = iota
	// KindLinkShutdown means the client has been stopped; all pending
	// requests fail with this and the public API rejects new requests.
	KindLinkShutdown
	// KindAccessDenied means the broker credentials were refused; fatal
	// for the client.
	KindAccessDenied
	// KindSyncTimeout means a synchronous waiter exceeded its wait budget;
	// the request remains pending, the caller decides what to do next.
	KindSyncTimeout
	// KindUnknown, KindMalformed, KindNotAllowed and KindInternalError are
	// mapped from container failure sub-codes for user inspection.
	KindUnknown
	KindMalformed
	KindNotAllowed
	KindInternalError
	// KindValidation is a local parameter validation failure; raised
	// directly to the caller, never enqueued.
	KindValidation
	// KindOversize means a decompression size cap was exceeded; the
	// message is dropped silently but surfaced as a debug callback.
	KindOversize
)

func (k Kind) String() string {
	switch k {
	case KindLinkError:
		return "link_error"
	case KindLinkShutdown:
		return "link_shutdown"
	case KindAccessDenied:
		return "access_denied"
	case KindSyncTimeout:
		return "sync_timeout"
	case KindUnknown:
		return "unknown"
	case KindMalformed:
		return "malformed"
	case KindNotAllowed:
		return "not_allowed"
	case KindInternalError:
		return "internal_error"
	case KindValidation:
		return "validation_error"
	case KindOversize:
		return "oversize"
	default:
		return "unspecified"
	}
}

// Error is the QAPI core's single error type: every failure mode named in
// spec.md §7 is a Kind plus a message, optionally wrapping a cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap constructs an Error of the given kind wrapping a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a QAPI error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == kind
}

// FromFailureCode maps a container RspFailed sub-code to an error Kind.
func FromFailureCode(code int) Kind {
	switch code {
	case 1:
		return KindNotAllowed
	case 2:
		return KindUnknown
	case 3:
		return KindMalformed
	case 4:
		return KindUnknown // duplicate: folded into KindUnknown, callers check payload resource directly
	case 5:
		return KindInternalError
	case 7:
		return KindAccessDenied
	default:
		return KindUnknown
	}
}

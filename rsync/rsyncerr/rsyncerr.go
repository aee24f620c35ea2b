// Package rsyncerr defines the error taxonomy shared by every core
// component. Fatal kinds unwind to the session driver; non-fatal kinds
// are recorded against a single file transfer and do not end the
// session.
package rsyncerr

import "errors"

// Kind identifies a class of error from the rsync core.
type Kind int

const (
	// KindChannelClosed means the peer closed the underlying byte channel.
	KindChannelClosed Kind = iota
	// KindProtocolMismatch means the negotiated protocol or compat flags
	// are unsupported.
	KindProtocolMismatch
	// KindFramingError means a malformed tag, length, or varint was seen
	// on the wire.
	KindFramingError
	// KindIOError means a local filesystem operation failed.
	KindIOError
	// KindChecksumMismatch means a trailer digest disagreed; the caller
	// should retry in phase 1.
	KindChecksumMismatch
	// KindOpenSendError means a local source file could not be opened
	// during upload; the index is dropped rather than forwarded.
	KindOpenSendError
	// KindPathInvalid means a remote path contains characters forbidden
	// on the local filesystem.
	KindPathInvalid
	// KindCancelled means the caller's cancellation flag was observed.
	KindCancelled
	// KindTimeout means the 600s stall watchdog fired.
	KindTimeout
	// KindRemoteIOError means the peer reported MSG_IO_ERROR.
	KindRemoteIOError
)

func (k Kind) String() string {
	switch k {
	case KindChannelClosed:
		return "channel closed"
	case KindProtocolMismatch:
		return "protocol mismatch"
	case KindFramingError:
		return "framing error"
	case KindIOError:
		return "io error"
	case KindChecksumMismatch:
		return "checksum mismatch"
	case KindOpenSendError:
		return "open send error"
	case KindPathInvalid:
		return "path invalid"
	case KindCancelled:
		return "cancelled"
	case KindTimeout:
		return "timeout"
	case KindRemoteIOError:
		return "remote io error"
	default:
		return "unknown rsync error"
	}
}

// Error is the concrete error type returned by core operations. Path is
// empty when the error is not specific to one file.
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		if e.Err != nil {
			return e.Kind.String() + ": " + e.Err.Error()
		}
		return e.Kind.String()
	}
	if e.Err != nil {
		return e.Kind.String() + " (" + e.Path + "): " + e.Err.Error()
	}
	return e.Kind.String() + " (" + e.Path + ")"
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no associated path.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// WithPath builds an *Error scoped to a single file list entry.
func WithPath(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatal reports whether kind must unwind the session rather than being
// recorded per-entry and continued past.
func (k Kind) Fatal() bool {
	switch k {
	case KindChecksumMismatch, KindOpenSendError, KindPathInvalid:
		return false
	default:
		return true
	}
}

// Package channel defines the ByteChannel contract that the Stream
// codec is built on. Establishing the underlying SSH or TCP connection
// is the caller's job; this package only describes the interface
// concrete transports must satisfy.
package channel

import "time"

// ByteChannel is a non-blocking-aware byte transport. Read returns 0
// immediately when the channel is readable-empty but not closed; Write
// returns 0 on would-block. Implementations must never block past the
// semantics documented on each method — the Stream layer supplies its
// own blocking-wait loops on top using Readable/Writable.
type ByteChannel interface {
	// Read fills buf with whatever is immediately available, returning
	// the byte count. Returns (0, nil) on would-block. Returns a
	// non-nil error (rsyncerr.KindChannelClosed) once the peer has
	// closed and no more data will ever arrive.
	Read(buf []byte) (int, error)

	// Write writes as much of buf as is immediately possible, returning
	// the byte count written. Returns (0, nil) on would-block.
	Write(buf []byte) (int, error)

	// Readable blocks up to timeout for the channel to become
	// readable, returning false on timeout.
	Readable(timeout time.Duration) bool

	// Writable blocks up to timeout for the channel to become
	// writable, returning false on timeout.
	Writable(timeout time.Duration) bool

	// Flush pushes any transport-level buffering (e.g. TCP_NODELAY
	// flush, SSH channel flush) to the wire.
	Flush() error

	// Closed reports whether the peer has closed its side.
	Closed() bool

	// Close tears down the channel. Safe to call more than once.
	Close() error
}

// HostKeyReporter is implemented by transports (the SSH channel) that
// need to surface a host-key fingerprint for caller acceptance during
// handshake.
type HostKeyReporter interface {
	// HostKeyFingerprint returns the raw 20-byte SHA1/MD5-style
	// fingerprint captured during the handshake, or nil if the
	// transport has none (e.g. plain TCP daemon mode).
	HostKeyFingerprint() []byte
}

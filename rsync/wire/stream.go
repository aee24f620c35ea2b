// Package wire implements Stream: a framed, optionally multiplexed
// codec on top of a channel.ByteChannel, providing the integer/string/
// index primitives the rest of the core is built on.
//
// Grounded on gokr-rsync's internal/rsyncwire package and on droyo-styx's
// fcall read-loop, which dispatches incoming frames by a leading type
// tag exactly as this Stream's buffered read path does.
package wire

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/gilbertchen/acrosync-library/rsync/channel"
	"github.com/gilbertchen/acrosync-library/rsync/rsyncerr"
	"github.com/gilbertchen/acrosync-library/rsync/rsynclog"
)

// state is Stream's buffering/multiplexing phase: Fresh → Unbuffered →
// Buffered → BufferedMultiplexed → reset.
type state int

const (
	stateFresh state = iota
	stateUnbuffered
	stateBuffered
	stateBufferedMultiplexed
)

const defaultUploadLimitWindow = 16 // seconds of history kept for pacing

// Stream is the framed, optionally multiplexed codec used for all
// protocol I/O. It is not safe for concurrent use; the session driver
// runs a single thread per connection.
type Stream struct {
	ch      channel.ByteChannel
	cancel  *atomic.Bool
	logSink rsynclog.Sink

	st state

	readBuf           bytes.Buffer
	writeBuf          bytes.Buffer
	readDataRemaining int

	autoFlush bool

	// flushStart/pendingFrame support TryFlushWriteBuffer's resumable,
	// non-blocking semantics.
	pendingFrame []byte
	flushStart   int

	// last-seen index per sign channel, read and write tracked
	// independently.
	readLastPos, readLastNeg   int32
	writeLastPos, writeLastNeg int32

	// Deleted holds paths received via MSG_DELETED.
	Deleted []string

	// Progress, if set, is invoked with the byte count of every
	// successful raw read/write against the channel. This is
	// finer-grained than the entry-level transfer callbacks and lets a
	// caller drive a byte-level progress bar.
	Progress func(n int64)

	// upload pacer state.
	uploadLimitBytesPerSec int64
	uploadBuckets          []int64
	bucketStartSec         int64

	lastProgress time.Time
}

// New wraps a ByteChannel in a fresh Stream. cancel, if non-nil, is
// polled at every suspension point.
func New(ch channel.ByteChannel, cancel *atomic.Bool) *Stream {
	return &Stream{
		ch:           ch,
		cancel:       cancel,
		logSink:      rsynclog.NewStdSink(),
		autoFlush:    true,
		lastProgress: time.Now(),
	}
}

// SetLogSink overrides the log sink used for MSG_INFO/WARNING/ERROR
// dispatch. The default is a private standard-library sink writing to
// stderr, not the sink installed with rsynclog.SetSink.
func (s *Stream) SetLogSink(sink rsynclog.Sink) { s.logSink = sink }

// Reset returns the stream to state Fresh, clearing all buffers and
// index counters.
func (s *Stream) Reset() {
	s.st = stateFresh
	s.readBuf.Reset()
	s.writeBuf.Reset()
	s.readDataRemaining = 0
	s.pendingFrame = nil
	s.flushStart = 0
	s.readLastPos, s.readLastNeg = 0, 0
	s.writeLastPos, s.writeLastNeg = 0, 0
	s.Deleted = nil
}

// EnableBuffer transitions Fresh/Unbuffered → Buffered.
func (s *Stream) EnableBuffer() { s.st = stateBuffered }

// EnableWriteMultiplex transitions Buffered → BufferedMultiplexed.
func (s *Stream) EnableWriteMultiplex() { s.st = stateBufferedMultiplexed }

// SetUploadLimit configures the token-bucket pacer, in kilobytes per
// second. 0 disables pacing.
func (s *Stream) SetUploadLimit(kbps int) {
	s.uploadLimitBytesPerSec = int64(kbps) * 1024
	s.uploadBuckets = make([]int64, defaultUploadLimitWindow)
	s.bucketStartSec = time.Now().Unix()
}

// SetAutoFlush toggles whether Write blocks to flush when the buffer
// would otherwise have to grow past its cap.
func (s *Stream) SetAutoFlush(on bool) { s.autoFlush = on }

func (s *Stream) checkCancelled() error {
	if s.cancel != nil && s.cancel.Load() {
		return rsyncerr.New(rsyncerr.KindCancelled, nil)
	}
	return nil
}

// readRaw blocking-fills buf directly from the channel, bypassing all
// framing. Every suspension point checks cancellation and the stall
// watchdog.
func (s *Stream) readRaw(buf []byte) error {
	pos := 0
	for pos < len(buf) {
		if err := s.checkCancelled(); err != nil {
			return err
		}
		if time.Since(s.lastProgress) > StallTimeout*time.Second {
			if s.ch.Closed() {
				return rsyncerr.New(rsyncerr.KindChannelClosed, nil)
			}
			return rsyncerr.New(rsyncerr.KindTimeout, nil)
		}
		n, err := s.ch.Read(buf[pos:])
		if err != nil {
			return err
		}
		if n == 0 {
			if s.ch.Closed() {
				return rsyncerr.New(rsyncerr.KindChannelClosed, nil)
			}
			s.ch.Readable(50 * time.Millisecond)
			continue
		}
		pos += n
		s.lastProgress = time.Now()
		if s.Progress != nil {
			s.Progress(int64(n))
		}
	}
	return nil
}

// writeRaw blocking-writes buf directly to the channel, applying the
// upload pacer.
func (s *Stream) writeRaw(buf []byte) error {
	if s.uploadLimitBytesPerSec > 0 {
		if err := s.pace(len(buf)); err != nil {
			return err
		}
	}
	pos := 0
	for pos < len(buf) {
		if err := s.checkCancelled(); err != nil {
			return err
		}
		if time.Since(s.lastProgress) > StallTimeout*time.Second {
			return rsyncerr.New(rsyncerr.KindTimeout, nil)
		}
		n, err := s.ch.Write(buf[pos:])
		if err != nil {
			return err
		}
		if n == 0 {
			s.ch.Writable(50 * time.Millisecond)
			continue
		}
		pos += n
		s.lastProgress = time.Now()
		if s.Progress != nil {
			s.Progress(int64(n))
		}
		if s.uploadLimitBytesPerSec > 0 {
			s.recordBucket(n)
		}
	}
	return s.ch.Flush()
}

// dispatchTag consumes one 4-byte tag header and, for every kind but
// MSG_DATA, fully processes it inline before returning. MSG_DATA
// instead sets readDataRemaining and returns immediately.
func (s *Stream) dispatchTag() error {
	var hdr [4]byte
	if err := s.readRaw(hdr[:]); err != nil {
		return err
	}
	tag := uint32(hdr[0]) | uint32(hdr[1])<<8 | uint32(hdr[2])<<16 | uint32(hdr[3])<<24
	// Wire tags pack as ((MSG_BASE+kind)<<24) | len24, little-endian.
	kind := int((tag >> 24) - msgBase)
	length := int(tag & 0x00FFFFFF)

	switch kind {
	case MsgData:
		s.readDataRemaining = length
		return nil
	case MsgInfo, MsgWarning, MsgError, MsgErrorXfer:
		payload := make([]byte, length)
		if err := s.readRaw(payload); err != nil {
			return err
		}
		level := rsynclog.Info
		if kind == MsgWarning {
			level = rsynclog.Warning
		} else if kind == MsgError || kind == MsgErrorXfer {
			level = rsynclog.Error
		}
		s.logSink.Log("RSYNC_MSG", level, string(payload))
		return nil
	case MsgDeleted:
		payload := make([]byte, length)
		if err := s.readRaw(payload); err != nil {
			return err
		}
		s.Deleted = append(s.Deleted, string(payload))
		return nil
	case MsgIOError:
		if length != 4 {
			return rsyncerr.New(rsyncerr.KindFramingError, nil)
		}
		var code [4]byte
		if err := s.readRaw(code[:]); err != nil {
			return err
		}
		return rsyncerr.New(rsyncerr.KindRemoteIOError, nil)
	case MsgSuccess, MsgNoSend:
		if length != 4 {
			return rsyncerr.New(rsyncerr.KindFramingError, nil)
		}
		var idx [4]byte
		if err := s.readRaw(idx[:]); err != nil {
			return err
		}
		return nil
	case MsgNoop:
		if length != 0 {
			return rsyncerr.New(rsyncerr.KindFramingError, nil)
		}
		return nil
	default:
		return rsyncerr.New(rsyncerr.KindFramingError, nil)
	}
}

// Read blocks until exactly len(buf) payload bytes have been
// assembled, transparently hopping across any number of MSG_DATA
// frames.
func (s *Stream) Read(buf []byte) error {
	if s.st == stateFresh || s.st == stateUnbuffered {
		return s.readRaw(buf)
	}
	pos := 0
	for pos < len(buf) {
		if s.readDataRemaining == 0 {
			if err := s.dispatchTag(); err != nil {
				return err
			}
			continue
		}
		want := len(buf) - pos
		if want > s.readDataRemaining {
			want = s.readDataRemaining
		}
		if err := s.readRaw(buf[pos : pos+want]); err != nil {
			return err
		}
		pos += want
		s.readDataRemaining -= want
	}
	return nil
}

// Write appends buf to the outgoing buffer, blocking to flush first
// if auto-flush is enabled and the buffer has grown past its cap.
// Unbuffered streams write straight through.
const writeBufferCap = 256 * 1024

func (s *Stream) Write(buf []byte) error {
	if s.st == stateFresh || s.st == stateUnbuffered {
		return s.writeRaw(buf)
	}
	if s.flushStart != 0 {
		return rsyncerr.New(rsyncerr.KindFramingError, nil)
	}
	if s.autoFlush && s.writeBuf.Len()+len(buf) > writeBufferCap {
		if err := s.FlushWriteBuffer(0); err != nil {
			return err
		}
	}
	s.writeBuf.Write(buf)
	return nil
}

func frameHeader(kind, length int) [4]byte {
	tag := uint32(msgBase+kind)<<24 | uint32(length&0x00FFFFFF)
	return [4]byte{byte(tag), byte(tag >> 8), byte(tag >> 16), byte(tag >> 24)}
}

// FlushWriteBuffer blocking-flushes the write buffer, prepending a
// MSG_DATA tag covering buffered+extra bytes when multiplexed.
func (s *Stream) FlushWriteBuffer(extra int) error {
	payload := s.writeBuf.Bytes()
	if s.st == stateBufferedMultiplexed {
		hdr := frameHeader(MsgData, len(payload)+extra)
		if err := s.writeRaw(hdr[:]); err != nil {
			return err
		}
	}
	if len(payload) > 0 {
		if err := s.writeRaw(payload); err != nil {
			return err
		}
	}
	s.writeBuf.Reset()
	s.flushStart = 0
	s.pendingFrame = nil
	return nil
}

// TryFlushWriteBuffer attempts to push the entire framed unit (tag +
// buffered payload) to the channel without blocking. It returns true
// only once the whole unit is on the wire; otherwise progress is
// recorded in flushStart/pendingFrame so a later call resumes exactly
// where this one left off, and no byte of it is lost or duplicated.
func (s *Stream) TryFlushWriteBuffer() (bool, error) {
	if s.pendingFrame == nil {
		if s.writeBuf.Len() == 0 && s.flushStart == 0 {
			return true, nil
		}
		payload := s.writeBuf.Bytes()
		if s.st == stateBufferedMultiplexed {
			hdr := frameHeader(MsgData, len(payload))
			frame := make([]byte, 0, 4+len(payload))
			frame = append(frame, hdr[:]...)
			frame = append(frame, payload...)
			s.pendingFrame = frame
		} else {
			s.pendingFrame = append([]byte(nil), payload...)
		}
	}
	for s.flushStart < len(s.pendingFrame) {
		if err := s.checkCancelled(); err != nil {
			return false, err
		}
		n, err := s.ch.Write(s.pendingFrame[s.flushStart:])
		if err != nil {
			return false, err
		}
		if n == 0 {
			return false, nil
		}
		s.flushStart += n
		s.lastProgress = time.Now()
		if s.Progress != nil {
			s.Progress(int64(n))
		}
	}
	s.writeBuf.Reset()
	s.flushStart = 0
	s.pendingFrame = nil
	return true, nil
}

// IsDataAvailable reports whether a Read would return without
// blocking: either a MSG_DATA frame is already open, or the channel
// itself reports readable.
func (s *Stream) IsDataAvailable() bool {
	if s.readDataRemaining > 0 {
		return true
	}
	return s.ch.Readable(0)
}

// Underlying exposes the wrapped channel, for callers that need to
// close or probe it directly (e.g. SessionDriver.stop()).
func (s *Stream) Underlying() channel.ByteChannel { return s.ch }

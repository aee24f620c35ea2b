// Package sshchan implements channel.ByteChannel over an SSH exec
// channel running `rsync --server ...`. The SSH handshake and host-key
// verification are the caller's job — dial and authenticate with
// golang.org/x/crypto/ssh and hand this package an established
// *ssh.Client; Dial starts the remote command and wires up the three
// pipes.
package sshchan

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/gilbertchen/acrosync-library/rsync/rsyncerr"
)

// recvWindowFloor is the size of the buffered reader over the remote
// command's stdout. This package does not adjust the SSH channel
// receive window itself.
const recvWindowFloor = 128 * 1024

// SSH adapts an ssh.Session's stdin/stdout to channel.ByteChannel.
type SSH struct {
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	stderr  io.Reader

	fingerprint []byte

	mu      sync.Mutex
	closed  bool
	waitErr error
	waited  bool
}

// Dial starts `command` on an already-authenticated client, returning
// a ByteChannel wired to its stdio. fingerprint is the host key
// fingerprint captured during the client's handshake; it is surfaced
// unchanged via HostKeyFingerprint.
func Dial(client *ssh.Client, command string, fingerprint []byte) (*SSH, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	stderr, err := session.StderrPipe()
	if err != nil {
		session.Close()
		return nil, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	if err := session.Start(command); err != nil {
		session.Close()
		return nil, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	s := &SSH{
		session:     session,
		stdin:       stdin,
		stdout:      bufio.NewReaderSize(stdout, recvWindowFloor),
		stderr:      stderr,
		fingerprint: fingerprint,
	}
	go s.drainStderr()
	return s, nil
}

func (s *SSH) drainStderr() {
	io.Copy(io.Discard, s.stderr)
}

func (s *SSH) HostKeyFingerprint() []byte { return s.fingerprint }

// Read blocks until stdout yields data or fails; it never returns
// (0, nil).
func (s *SSH) Read(buf []byte) (int, error) {
	n, err := s.stdout.Read(buf)
	if err != nil {
		if err == io.EOF {
			s.markClosed()
			return n, rsyncerr.New(rsyncerr.KindChannelClosed, err)
		}
		return n, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	return n, nil
}

func (s *SSH) Write(buf []byte) (int, error) {
	n, err := s.stdin.Write(buf)
	if err != nil {
		return n, rsyncerr.New(rsyncerr.KindChannelClosed, err)
	}
	return n, nil
}

func (s *SSH) Readable(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.stdout.Buffered() > 0 {
			return true
		}
		if s.Closed() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return s.stdout.Buffered() > 0
}

func (s *SSH) Writable(timeout time.Duration) bool { return true }

func (s *SSH) Flush() error { return nil }

// Closed reports whether stdout has hit EOF or Close has been called.
// It does not query the session's exit status or exit signal.
func (s *SSH) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *SSH) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *SSH) Close() error {
	s.markClosed()
	s.stdin.Close()
	err := s.session.Wait()
	if err != nil {
		if _, ok := err.(*ssh.ExitError); !ok {
			return fmt.Errorf("ssh session wait: %w", err)
		}
	}
	return s.session.Close()
}

package clientutil

import (
	"crypto/sha1"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/gilbertchen/acrosync-library/rsync/channel"
	"github.com/gilbertchen/acrosync-library/rsync/channel/sshchan"
)

// HostKeyFunc is consulted when a host key isn't found in known_hosts.
type HostKeyFunc func(server, fingerprintHex string) bool

// DialSSH authenticates against an ssh-agent — the thin,
// real-library-backed glue rsync/channel/sshchan expects a caller to
// supply — and returns a func that execs command over a fresh session
// per call, suitable for session.Options.Dialer.
//
// Grounded on rclone's backend/sftp dial/auth shape (ssh-agent signer
// collection, ssh.ClientConfig assembly), adapted to use only what the
// module's go.mod already carries (golang.org/x/crypto/ssh's own agent
// and knownhosts subpackages) rather than pulling in rclone's
// xanzy/ssh-agent dependency.
func DialSSH(user, host string, port int, hostKeyFn HostKeyFunc) (func(command string) (channel.ByteChannel, error), error) {
	auth, err := agentAuth()
	if err != nil {
		return nil, fmt.Errorf("connecting to ssh-agent: %w", err)
	}

	var fingerprint []byte
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{auth},
		Timeout:         10 * time.Second,
		HostKeyCallback: hostKeyCallback(hostKeyFn, &fingerprint),
	}
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	return func(command string) (channel.ByteChannel, error) {
		return sshchan.Dial(client, command, fingerprint)
	}, nil
}

func agentAuth() (ssh.AuthMethod, error) {
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil, fmt.Errorf("SSH_AUTH_SOCK not set; no other key source is configured")
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeysCallback(agent.NewClient(conn).Signers), nil
}

// hostKeyCallback prefers the user's known_hosts file; when the host is
// unknown it falls back to asking the caller-supplied hostKeyFn.
func hostKeyCallback(hostKeyFn HostKeyFunc, fingerprintOut *[]byte) ssh.HostKeyCallback {
	known, knownErr := knownhosts.New(defaultKnownHostsPath())
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		sum := sha1.Sum(key.Marshal())
		*fingerprintOut = sum[:]

		if knownErr == nil {
			if err := known(hostname, remote, key); err == nil {
				return nil
			}
		}
		if hostKeyFn != nil && hostKeyFn(hostname, FingerprintHex(sum[:])) {
			return nil
		}
		return fmt.Errorf("host key for %s rejected", hostname)
	}
}

func defaultKnownHostsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ssh", "known_hosts")
}

// FingerprintHex renders a raw fingerprint as colon-separated hex.
func FingerprintHex(fp []byte) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, 0, len(fp)*3)
	for i, b := range fp {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hexDigits[b>>4], hexDigits[b&0xf])
	}
	return string(buf)
}

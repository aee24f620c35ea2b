// Package daemonlogin implements the plaintext rsync-daemon line
// protocol: `@RSYNCD:` handshake, optional MD-challenge
// authentication, module listing, and remote-command argument
// transmission.
//
// Grounded on gokr-rsync's clientmaincmd.go remote command assembly
// (the shlex tokenizing this package reuses for the same purpose) and
// on rsync_client.cpp's authenticate()/listModules(), which pin the
// exact digest-selection and module-listing termination rules.
package daemonlogin

import (
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"

	"github.com/google/shlex"
	"github.com/mmcloughlin/md4"

	"github.com/gilbertchen/acrosync-library/rsync/rsyncerr"
	"github.com/gilbertchen/acrosync-library/rsync/wire"
)

const banner = "@RSYNCD:"

// Result is what the handshake learns about the connection.
type Result struct {
	Protocol int
}

// Login runs the client side of the daemon line protocol against
// module on s, which must still be in its pre-buffer phase. password
// is used only if the server demands AUTHREQD.
func Login(s *wire.Stream, clientProtocol int, module, user, password string) (Result, error) {
	if err := s.WriteLine(fmt.Sprintf("%s %d.0", banner, clientProtocol)); err != nil {
		return Result{}, err
	}
	greeting, err := s.ReadLine()
	if err != nil {
		return Result{}, err
	}
	proto, err := parseBanner(greeting)
	if err != nil {
		return Result{}, err
	}
	if err := s.WriteLine(module); err != nil {
		return Result{}, err
	}

	negotiated := clientProtocol
	if proto < negotiated {
		negotiated = proto
	}

	for {
		line, err := s.ReadLine()
		if err != nil {
			return Result{}, err
		}
		switch {
		case strings.HasPrefix(line, "@ERROR"):
			return Result{}, rsyncerr.New(rsyncerr.KindProtocolMismatch, fmt.Errorf("daemon: %s", line))
		case strings.HasPrefix(line, banner+" AUTHREQD "):
			challenge := strings.TrimPrefix(line, banner+" AUTHREQD ")
			reply := authReply(negotiated, user, password, challenge)
			if err := s.WriteLine(reply); err != nil {
				return Result{}, err
			}
		case line == banner+" OK":
			return Result{Protocol: negotiated}, nil
		default:
			// Module listing line before OK; callers that want the list
			// use ListModules instead of Login.
		}
	}
}

// ListModules requests the module list (module name ".") and returns
// each line up to the @RSYNCD: EXIT terminator, CR trimmed, matching
// rsync_client.cpp's listModules.
func ListModules(s *wire.Stream, clientProtocol int) ([]string, error) {
	if err := s.WriteLine(fmt.Sprintf("%s %d.0", banner, clientProtocol)); err != nil {
		return nil, err
	}
	if _, err := s.ReadLine(); err != nil {
		return nil, err
	}
	if err := s.WriteLine("#list"); err != nil {
		return nil, err
	}

	var modules []string
	for {
		line, err := s.ReadLine()
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r")
		if line == banner+" EXIT" {
			return modules, nil
		}
		modules = append(modules, line)
	}
}

// SendCommand tokenizes command (honoring double-quoted arguments) and
// transmits each argument as one line, LF-terminated under protocol 29
// or bare under 30, finished by an empty line.
func SendCommand(s *wire.Stream, protocol int, command string) error {
	args, err := shlex.Split(command)
	if err != nil {
		return rsyncerr.New(rsyncerr.KindFramingError, err)
	}
	for _, arg := range args {
		if protocol < 30 {
			if err := s.WriteLine(arg); err != nil {
				return err
			}
		} else if err := s.Write([]byte(arg)); err != nil {
			return err
		}
	}
	return s.WriteLine("")
}

func parseBanner(line string) (int, error) {
	var major, minor int
	if _, err := fmt.Sscanf(line, banner+" %d.%d", &major, &minor); err != nil {
		return 0, rsyncerr.New(rsyncerr.KindProtocolMismatch, fmt.Errorf("malformed banner %q: %w", line, err))
	}
	return major, nil
}

// authReply computes "<user> <base64(digest(password ∥ challenge))>"
// with trailing '=' padding stripped. Protocol ≥30 uses MD5, protocol
// 29 uses MD4 (same selection rule as the block/whole-file strong
// digest in rsync/checksum).
func authReply(protocol int, user, password, challenge string) string {
	var h hash.Hash
	if protocol >= 30 {
		h = md5.New()
	} else {
		h = md4.New()
	}
	h.Write([]byte(password))
	h.Write([]byte(challenge))
	sum := base64.StdEncoding.EncodeToString(h.Sum(nil))
	sum = strings.TrimRight(sum, "=")
	return user + " " + sum
}

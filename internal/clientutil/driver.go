package clientutil

import (
	"fmt"
	"net"
	"os/user"

	"github.com/gilbertchen/acrosync-library/rsync/channel/sockchan"
	"github.com/gilbertchen/acrosync-library/rsync/session"
)

// ClientProtocol is the highest wire protocol the front ends offer;
// session.Driver negotiates down to what the peer supports.
const ClientProtocol = 30

// NewDriver establishes the transport named by remote (SSH exec or a
// plain daemon TCP socket) and returns a session.Driver ready to run
// one operation. opts should have the operation-specific fields
// (Recursive, Deleting, ...) already set; NewDriver fills in
// ClientProtocol, the transport, and daemon credentials.
func NewDriver(remote Endpoint, password string, hostKeyFn HostKeyFunc, opts session.Options) (*session.Driver, error) {
	opts.ClientProtocol = ClientProtocol

	if remote.Daemon {
		conn, err := net.Dial("tcp", net.JoinHostPort(remote.Host, portOrDefault(remote.Port)))
		if err != nil {
			return nil, fmt.Errorf("dialing daemon %s: %w", remote.Host, err)
		}
		opts.Mode = session.ModeDaemon
		opts.DaemonChannel = sockchan.New(conn)
		opts.Module = remote.Module
		opts.User = remote.User
		opts.Password = password
		return session.NewDriver(opts), nil
	}

	localUser := remote.User
	if localUser == "" {
		if u, err := user.Current(); err == nil {
			localUser = u.Username
		}
	}
	dialer, err := DialSSH(localUser, remote.Host, 22, hostKeyFn)
	if err != nil {
		return nil, err
	}
	opts.Mode = session.ModeSSH
	opts.Dialer = session.Dialer(dialer)
	return session.NewDriver(opts), nil
}

func portOrDefault(port int) string {
	if port == 0 {
		port = DefaultDaemonPort
	}
	return fmt.Sprintf("%d", port)
}

// Package clientutil holds the hostspec parsing and transport-dialing
// glue shared by the module's command-line front ends (cmd/acrosync,
// cmd/acrosyncd). Neither rsync/session nor any core package depends on
// it; it exists purely so the two cmd/ front ends do not duplicate this
// logic, keeping the CLI a thin layer atop the core SessionDriver.
//
// Grounded on gokr-rsync's internal/maincmd/clientmaincmd.go
// checkForHostspec call shape (host/path/port extraction ahead of the
// shell-vs-daemon branch); the parser itself is this module's own,
// since upstream's hostspec grammar implementation wasn't available for
// reference.
package clientutil

import "strings"

// Endpoint describes one side of a transfer argument after parsing: a
// hostspec of the form `[user@]host:path`, `[user@]host::module/path`,
// or `rsync://[user@]host[:port]/module/path`. A local path parses with
// Remote == false and Path holding the argument unchanged.
type Endpoint struct {
	Remote bool
	Daemon bool // true: rsync://, ::; false: ssh hostspec
	User   string
	Host   string
	Port   int
	Module string
	Path   string
}

// DefaultDaemonPort is the standard rsync daemon TCP port.
const DefaultDaemonPort = 873

// ParseEndpoint classifies one command-line argument.
func ParseEndpoint(arg string) Endpoint {
	if rest, ok := strings.CutPrefix(arg, "rsync://"); ok {
		return parseDaemonURL(rest)
	}
	if idx := strings.Index(arg, "::"); idx >= 0 {
		userHost, modulePath := arg[:idx], arg[idx+2:]
		user, host := SplitUserHost(userHost)
		module, path := splitModulePath(modulePath)
		return Endpoint{Remote: true, Daemon: true, User: user, Host: host, Port: DefaultDaemonPort, Module: module, Path: path}
	}
	if idx := strings.Index(arg, ":"); idx >= 0 && !looksLikeWindowsDrive(arg, idx) {
		userHost, path := arg[:idx], arg[idx+1:]
		user, host := SplitUserHost(userHost)
		return Endpoint{Remote: true, Daemon: false, User: user, Host: host, Path: path}
	}
	return Endpoint{Remote: false, Path: arg}
}

func parseDaemonURL(rest string) Endpoint {
	userHost := rest
	modulePath := ""
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		userHost, modulePath = rest[:idx], rest[idx+1:]
	}
	user, hostPort := SplitUserHost(userHost)
	host, port := hostPort, DefaultDaemonPort
	if idx := strings.LastIndex(hostPort, ":"); idx >= 0 {
		host = hostPort[:idx]
		if p, ok := parsePort(hostPort[idx+1:]); ok {
			port = p
		}
	}
	module, path := splitModulePath(modulePath)
	return Endpoint{Remote: true, Daemon: true, User: user, Host: host, Port: port, Module: module, Path: path}
}

// SplitUserHost splits "user@host" into its parts; host alone yields an
// empty user.
func SplitUserHost(s string) (user, host string) {
	if idx := strings.IndexByte(s, '@'); idx >= 0 {
		return s[:idx], s[idx+1:]
	}
	return "", s
}

func splitModulePath(modulePath string) (module, path string) {
	if idx := strings.IndexByte(modulePath, '/'); idx >= 0 {
		return modulePath[:idx], modulePath[idx+1:]
	}
	return modulePath, "."
}

func parsePort(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// looksLikeWindowsDrive guards against misreading "C:\foo" as a
// hostspec: a single-letter scheme immediately followed by a path
// separator is treated as local.
func looksLikeWindowsDrive(arg string, colonIdx int) bool {
	return colonIdx == 1 && len(arg) > 2 && (arg[2] == '\\' || arg[2] == '/')
}

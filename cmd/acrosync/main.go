// Command acrosync is a thin CLI front end over rsync/session. It
// parses rsync-style hostspecs, dials SSH or a plain TCP daemon
// connection, and drives one Download/Upload/listModules operation per
// invocation.
//
// Grounded on gokr-rsync's internal/maincmd/clientmaincmd.go for the
// overall arg-to-operation shape (hostspec classification, sender/
// receiver direction inference) and on rsync_client.cpp's download/
// upload entry points for what a single operation needs from its
// caller.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/DavidGamba/go-getoptions"

	"github.com/gilbertchen/acrosync-library/internal/clientutil"
	"github.com/gilbertchen/acrosync-library/rsync/rsynclog"
	"github.com/gilbertchen/acrosync-library/rsync/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "acrosync: "+err.Error())
		os.Exit(1)
	}
}

func run(argv []string) error {
	opt := getoptions.New()
	help := opt.Bool("help", false, opt.Alias("h"))
	verbose := opt.Bool("verbose", false, opt.Alias("v"))
	recursive := opt.Bool("recursive", false, opt.Alias("r"))
	deleteDuring := opt.Bool("delete", false)
	listModules := opt.Bool("list-modules", false)
	bwlimit := opt.Int("bwlimit", 0)
	password := opt.String("password", "")
	linkDest := opt.StringSlice("link-dest", 0, 32)

	remaining, err := opt.Parse(argv)
	if *help {
		fmt.Fprint(os.Stderr, opt.Help())
		return nil
	}
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if *verbose {
		rsynclog.SetSink(rsynclog.NewStdSink())
	}

	if *listModules {
		if len(remaining) != 1 {
			return fmt.Errorf("--list-modules takes exactly one HOST argument")
		}
		return runListModules(remaining[0], *password)
	}
	if len(remaining) != 2 {
		return fmt.Errorf("usage: acrosync [options] SRC DST")
	}

	src, dst := clientutil.ParseEndpoint(remaining[0]), clientutil.ParseEndpoint(remaining[1])
	switch {
	case src.Remote && !dst.Remote:
		return runDownload(src, dst.Path, *recursive, *deleteDuring, *bwlimit, *linkDest, *password)
	case !src.Remote && dst.Remote:
		return runUpload(src.Path, dst, *recursive, *linkDest, *password)
	case !src.Remote && !dst.Remote:
		return fmt.Errorf("at least one of SRC or DST must be remote (local-to-local copies are out of scope)")
	default:
		return fmt.Errorf("remote-to-remote transfers are out of scope; exactly one side must be local")
	}
}

func runDownload(remote clientutil.Endpoint, localPath string, recursive, deleteDuring bool, bwlimitKbps int, linkDest []string, password string) error {
	d, err := newDriver(remote, password, session.Options{
		Recursive:         recursive,
		Deleting:          deleteDuring,
		DownloadLimitKbps: bwlimitKbps,
		LinkDestPaths:     linkDest,
	})
	if err != nil {
		return err
	}
	if err := d.Download(context.Background(), remote.Path, localPath); err != nil {
		return err
	}
	printStats(d.Stats())
	return nil
}

func runUpload(localPath string, remote clientutil.Endpoint, recursive bool, linkDest []string, password string) error {
	d, err := newDriver(remote, password, session.Options{
		Recursive:     recursive,
		LinkDestPaths: linkDest,
	})
	if err != nil {
		return err
	}
	if err := d.Upload(context.Background(), localPath, remote.Path); err != nil {
		return err
	}
	printStats(d.Stats())
	return nil
}

func runListModules(arg, password string) error {
	remote := clientutil.ParseEndpoint(arg)
	if !remote.Remote {
		// A bare hostname (no "::", "rsync://" or ":path") still means
		// "list this daemon's modules" for --list-modules.
		user, host := clientutil.SplitUserHost(arg)
		remote = clientutil.Endpoint{Remote: true, Daemon: true, User: user, Host: host}
	}
	remote.Daemon = true
	if remote.Port == 0 {
		remote.Port = clientutil.DefaultDaemonPort
	}
	d, err := newDriver(remote, password, session.Options{})
	if err != nil {
		return err
	}
	_, err = d.ListModules(context.Background())
	return err
}

// newDriver wires the callbacks this front end wants on top of
// clientutil.NewDriver's transport setup.
func newDriver(remote clientutil.Endpoint, password string, opts session.Options) (*session.Driver, error) {
	opts.StatusFunc = func(msg string) { fmt.Fprintln(os.Stderr, msg) }
	opts.EntryFunc = func(path string, isDir bool, size, modTime int64, symlink string) {
		fmt.Println(path)
	}
	return clientutil.NewDriver(remote, password, acceptAnyHostKey, opts)
}

func acceptAnyHostKey(server, fingerprintHex string) bool {
	fmt.Fprintf(os.Stderr, "accepting host key %s for %s (no interactive prompt wired)\n", fingerprintHex, server)
	return true
}

func printStats(stats session.SessionStats) {
	fmt.Fprintf(os.Stderr, "updated %d, retried %d, deleted %d, skipped %d bytes\n",
		len(stats.Updated), stats.Retried, len(stats.Deleted), stats.Skipped)
}

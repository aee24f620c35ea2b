// Command acrosyncd is a resident front end that repeatedly drives one
// rsync/session operation between a fixed local root and a fixed
// remote endpoint on a timer. It is not an rsync protocol server — it
// is simply a long-lived client, restricting its own filesystem access
// via landlock before entering the sync loop.
//
// Grounded on gokr-rsync's internal/maincmd/maincmd.go, which calls
// restrict.MaybeFileSystem(roDirs, rwDirs) with the
// sender's read-only paths or the receiver's read-write paths right
// before running one transfer; this command generalizes that single
// one-shot call into a setup step ahead of a periodic download/upload
// loop, reusing internal/restrict unchanged.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DavidGamba/go-getoptions"

	"github.com/gilbertchen/acrosync-library/internal/clientutil"
	"github.com/gilbertchen/acrosync-library/internal/restrict"
	"github.com/gilbertchen/acrosync-library/rsync/rsynclog"
	"github.com/gilbertchen/acrosync-library/rsync/session"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "acrosyncd: "+err.Error())
		os.Exit(1)
	}
}

func run(argv []string) error {
	opt := getoptions.New()
	help := opt.Bool("help", false, opt.Alias("h"))
	upload := opt.Bool("upload", false)
	deleteDuring := opt.Bool("delete", false)
	interval := opt.Int("interval-seconds", 300)
	password := opt.String("password", "")
	restrictFS := opt.Bool("restrict", true)

	remaining, err := opt.Parse(argv)
	if *help {
		fmt.Fprint(os.Stderr, opt.Help())
		return nil
	}
	if err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	if len(remaining) != 2 {
		return fmt.Errorf("usage: acrosyncd [options] LOCAL-DIR REMOTE-ENDPOINT")
	}
	rsynclog.SetSink(rsynclog.NewStdSink())

	localRoot := remaining[0]
	remote := clientutil.ParseEndpoint(remaining[1])
	if !remote.Remote {
		return fmt.Errorf("%q is not a remote endpoint", remaining[1])
	}
	if err := os.MkdirAll(localRoot, 0o755); err != nil {
		return err
	}

	if *restrictFS {
		var roDirs, rwDirs []string
		if *upload {
			roDirs = append(roDirs, localRoot)
		} else {
			rwDirs = append(rwDirs, localRoot)
		}
		if err := restrict.MaybeFileSystem(roDirs, rwDirs); err != nil {
			return fmt.Errorf("restricting filesystem access: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Duration(*interval) * time.Second)
	defer ticker.Stop()

	runOnce := func() {
		if err := syncOnce(ctx, localRoot, remote, *upload, *deleteDuring, *password); err != nil {
			rsynclog.Log("acrosyncd", rsynclog.Error, err.Error())
		}
	}

	runOnce()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

func syncOnce(ctx context.Context, localRoot string, remote clientutil.Endpoint, upload, deleteDuring bool, password string) error {
	opts := session.Options{
		Recursive: true,
		Deleting:  deleteDuring,
		StatusFunc: func(msg string) {
			rsynclog.Log("acrosyncd", rsynclog.Info, msg)
		},
	}
	d, err := clientutil.NewDriver(remote, password, rejectUnknownHostKey, opts)
	if err != nil {
		return err
	}
	if upload {
		return d.Upload(ctx, localRoot, remote.Path)
	}
	return d.Download(ctx, remote.Path, localRoot)
}

// rejectUnknownHostKey never trusts a host key outside known_hosts: an
// unattended daemon has nobody to prompt.
func rejectUnknownHostKey(server, fingerprintHex string) bool {
	rsynclog.Log("acrosyncd", rsynclog.Warning, fmt.Sprintf("refusing unknown host key %s for %s", fingerprintHex, server))
	return false
}

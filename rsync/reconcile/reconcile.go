// Package reconcile implements ListReconciler: a two-pointer merge of
// two compareGlobally-sorted file lists that classifies each remote
// entry into a local filesystem action.
//
// Grounded on gokr-rsync's receiver generator loop (which walks a
// remote file list against local stat results to decide
// create/skip/transfer) and on rsync_client.cpp's download loop (lines
// 660-715) for the exact decision table this package reproduces:
// missing-locally create/symlink/queue, remote-is-symlink
// remove-then-create, remote-is-directory chmod-or-recreate, and
// remote-is-file stale-mtime queue vs. chmod-and-skip.
package reconcile

import (
	"strings"

	"github.com/gilbertchen/acrosync-library/rsync/flist"
	"github.com/gilbertchen/acrosync-library/rsync/pathvalidate"
)

// Action is the local filesystem operation ListReconciler assigns to
// one remote entry.
type Action int

const (
	// ActionSkip means do nothing (reserved path, or benign mismatch).
	ActionSkip Action = iota
	// ActionLogSkipNonRegular means log and skip (remote is a device,
	// fifo, or other non-regular type local has nothing to mirror).
	ActionLogSkipNonRegular
	// ActionPathInvalid means the remote path contains a byte forbidden
	// on the local filesystem; skip with an Info log.
	ActionPathInvalid
	// ActionCreateDir means create the directory locally.
	ActionCreateDir
	// ActionCreateSymlink means create the symlink locally.
	ActionCreateSymlink
	// ActionRemoveCreateSymlink means remove the local entry, then
	// create the symlink.
	ActionRemoveCreateSymlink
	// ActionChmodDir means the directory exists on both sides but with
	// different modes; chmod to match.
	ActionChmodDir
	// ActionRemoveCreateDirChmod means remove the local (non-directory)
	// entry, create the directory, and set its mode.
	ActionRemoveCreateDirChmod
	// ActionRemoveQueueTransfer means remove the local directory and
	// queue the remote file for transfer.
	ActionRemoveQueueTransfer
	// ActionQueueTransfer means validate the path and queue the remote
	// file for transfer (no local file, or local is stale).
	ActionQueueTransfer
	// ActionChmodSkip means the local file is at least as new; chmod if
	// modes differ and count its bytes as skipped.
	ActionChmodSkip
)

// staleDelta is the minimum mtime gap before a local regular file is
// considered older than its remote counterpart.
const staleDelta = 1 // seconds

// Decision is the per-remote-entry outcome of one reconciliation step.
type Decision struct {
	RemoteIndex int
	Remote      *flist.Entry
	Local       *flist.Entry // nil if missing locally
	Action      Action
	// SkippedBytes is added to the running "skipped" total when Action
	// leaves the remote content untransferred (create dir, or local
	// already current).
	SkippedBytes int64
}

// Result is the outcome of one full reconciliation pass.
type Result struct {
	Decisions []Decision
	Skipped   int64
}

// baseName strips a single trailing "/" so a directory and a regular
// file or symlink sharing the same name compare equal: CompareGlobally
// deliberately orders a directory's own entry immediately before a
// same-named file (its tie-break rule), so the two never satisfy
// CompareGlobally(a,b)==0 even though the decision table below must
// still pair them up as "the same slot, different type".
func baseName(path string) string {
	if strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}

// Reconcile merges remote and local (both already sorted by
// flist.CompareGlobally) and classifies every remote entry.
func Reconcile(remote, local []*flist.Entry) Result {
	var res Result
	j := 0
	for i, r := range remote {
		rk := baseName(r.Path)
		for j < len(local) && baseName(local[j].Path) != rk && flist.CompareGlobally(local[j], r) < 0 {
			j++
		}
		var l *flist.Entry
		if j < len(local) && baseName(local[j].Path) == rk {
			l = local[j]
			j++
		}
		d := classify(i, r, l)
		res.Decisions = append(res.Decisions, d)
		res.Skipped += d.SkippedBytes
	}
	return res
}

func classify(index int, r, l *flist.Entry) Decision {
	d := Decision{RemoteIndex: index, Remote: r, Local: l}

	if r.Path == ".acrosync" || strings.HasPrefix(r.Path, ".acrosync/") {
		d.Action = ActionSkip
		return d
	}

	if l == nil {
		switch {
		case r.IsDirectory():
			d.Action = ActionCreateDir
			d.SkippedBytes = r.Size
		case r.IsSymlink():
			d.Action = ActionCreateSymlink
		case r.IsRegular():
			if !pathvalidate.Valid(r.Path) {
				d.Action = ActionPathInvalid
			} else {
				d.Action = ActionQueueTransfer
			}
		default:
			d.Action = ActionLogSkipNonRegular
		}
		return d
	}

	switch {
	case r.IsSymlink():
		d.Action = ActionRemoveCreateSymlink
	case r.IsDirectory() && l.IsDirectory():
		if r.Mode != l.Mode {
			d.Action = ActionChmodDir
		} else {
			d.Action = ActionSkip
		}
	case r.IsDirectory():
		d.Action = ActionRemoveCreateDirChmod
	case r.IsRegular() && l.IsDirectory():
		if pathvalidate.Valid(r.Path) {
			d.Action = ActionRemoveQueueTransfer
		} else {
			d.Action = ActionPathInvalid
		}
	case r.IsRegular() && !l.IsRegular():
		d.Action = ActionSkip
	case r.IsRegular():
		if r.Time-l.Time > staleDelta {
			if pathvalidate.Valid(r.Path) {
				d.Action = ActionQueueTransfer
			} else {
				d.Action = ActionPathInvalid
			}
		} else {
			d.Action = ActionChmodSkip
			d.SkippedBytes = r.Size
		}
	default:
		d.Action = ActionSkip
	}
	return d
}

// DeletionCandidates returns local paths absent from remote, for the
// post-transfer deletion sweep. Both lists must already be sorted by
// flist.CompareGlobally.
func DeletionCandidates(remote, local []*flist.Entry) []string {
	remoteSet := make(map[string]bool, len(remote))
	for _, r := range remote {
		remoteSet[r.Path] = true
	}
	var out []string
	for _, l := range local {
		if l.Path == ".acrosync" || strings.HasPrefix(l.Path, ".acrosync/") {
			continue
		}
		if !remoteSet[l.Path] {
			out = append(out, l.Path)
		}
	}
	return out
}

package reconcile

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gilbertchen/acrosync-library/rsync/flist"
)

func dir(path string, mode uint32) *flist.Entry {
	return &flist.Entry{Path: path, Mode: flist.IsDir | mode}
}
func file(path string, mode uint32, size, t int64) *flist.Entry {
	return &flist.Entry{Path: path, Mode: flist.IsFile | mode, Size: size, Time: t}
}
func symlink(path, target string) *flist.Entry {
	return &flist.Entry{Path: path, Mode: flist.IsFile | flist.IsLink, Symlink: target}
}

func oneDecision(t *testing.T, remote, local []*flist.Entry) Decision {
	t.Helper()
	res := Reconcile(remote, local)
	if len(res.Decisions) != 1 {
		t.Fatalf("got %d decisions, want 1", len(res.Decisions))
	}
	return res.Decisions[0]
}

func TestReconcileMissingLocal(t *testing.T) {
	cases := []struct {
		name   string
		remote *flist.Entry
		want   Action
	}{
		{"dir", dir("d/", 0o755), ActionCreateDir},
		{"symlink", symlink("l", "target"), ActionCreateSymlink},
		{"regular", file("f.txt", 0o644, 100, 1000), ActionQueueTransfer},
		{"invalid path", file("bad:name.txt", 0o644, 10, 1000), ActionPathInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := oneDecision(t, []*flist.Entry{c.remote}, nil)
			if d.Action != c.want {
				t.Errorf("action = %v, want %v", d.Action, c.want)
			}
		})
	}
}

func TestReconcileBothPresent(t *testing.T) {
	cases := []struct {
		name          string
		remote, local *flist.Entry
		want          Action
	}{
		{"symlink overwrites anything", symlink("l", "t"), file("l", 0o644, 1, 1), ActionRemoveCreateSymlink},
		{"dir same mode", dir("d/", 0o755), dir("d/", 0o755), ActionSkip},
		{"dir different mode", dir("d/", 0o700), dir("d/", 0o755), ActionChmodDir},
		{"dir over file", dir("d/", 0o755), file("d/", 0o644, 1, 1), ActionRemoveCreateDirChmod},
		{"regular over dir", file("f", 0o644, 1, 1000), dir("f/", 0o755), ActionRemoveQueueTransfer},
		{"regular over symlink", file("f", 0o644, 1, 1000), symlink("f", "t"), ActionSkip},
		{"remote newer", file("f", 0o644, 1, 2000), file("f", 0o644, 1, 500), ActionQueueTransfer},
		{"remote same age", file("f", 0o644, 1, 1000), file("f", 0o644, 1, 1000), ActionChmodSkip},
		{"remote older", file("f", 0o644, 1, 500), file("f", 0o644, 1, 2000), ActionChmodSkip},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := oneDecision(t, []*flist.Entry{c.remote}, []*flist.Entry{c.local})
			if d.Action != c.want {
				t.Errorf("action = %v, want %v", d.Action, c.want)
			}
		})
	}
}

func TestReconcileSkipsAcrosyncDirectory(t *testing.T) {
	d := oneDecision(t, []*flist.Entry{file(".acrosync/state.db", 0o644, 10, 1000)}, nil)
	if d.Action != ActionSkip {
		t.Errorf("action = %v, want ActionSkip", d.Action)
	}
}

func TestReconcileSkippedBytesAccumulate(t *testing.T) {
	remote := []*flist.Entry{
		file("current.txt", 0o644, 42, 1000),
		dir("d/", 0o755),
	}
	local := []*flist.Entry{file("current.txt", 0o644, 42, 1000)}
	res := Reconcile(remote, local)
	if res.Skipped != 42 {
		t.Errorf("Skipped = %d, want 42", res.Skipped)
	}
}

func TestDeletionCandidates(t *testing.T) {
	remote := []*flist.Entry{file("keep.txt", 0o644, 1, 1)}
	local := []*flist.Entry{
		file("keep.txt", 0o644, 1, 1),
		file("gone.txt", 0o644, 1, 1),
		file(".acrosync/state.db", 0o644, 1, 1),
	}
	got := DeletionCandidates(remote, local)
	if diff := cmp.Diff([]string{"gone.txt"}, got); diff != "" {
		t.Fatalf("DeletionCandidates mismatch (-want +got):\n%s", diff)
	}
}

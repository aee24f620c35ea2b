package localtree

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWalkProducesSortedEntriesAndSkipsReserved(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "dir"))
	mustMkdir(t, filepath.Join(root, reservedDir))
	mustWrite(t, filepath.Join(root, reservedDir, "state.db"), "x")
	mustWrite(t, filepath.Join(root, "dir", "file.txt"), "hello")
	mustWrite(t, filepath.Join(root, "top.txt"), "world")

	entries, err := Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	byPath := map[string]bool{}
	for _, e := range entries {
		byPath[e.Path] = true
	}
	if byPath[".acrosync"] || byPath[".acrosync/state.db"] {
		t.Fatalf(".acrosync should be excluded, got entries: %+v", entries)
	}
	if !byPath["dir/"] || !byPath["dir/file.txt"] || !byPath["top.txt"] {
		t.Fatalf("missing expected entries: %+v", entries)
	}
	if entries[0].Path != "." {
		t.Errorf("first entry = %q, want \".\"", entries[0].Path)
	}
}

func TestWalkRecordsSymlinkWithoutFollowing(t *testing.T) {
	root := t.TempDir()
	mustWrite(t, filepath.Join(root, "target.txt"), "content")
	if err := os.Symlink("target.txt", filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	entries, err := Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	var found bool
	for _, e := range entries {
		if e.Path == "link" {
			found = true
			if !e.IsSymlink() || e.Symlink != "target.txt" {
				t.Errorf("link entry = %+v, want symlink to target.txt", e)
			}
		}
	}
	if !found {
		t.Fatal("link entry not found")
	}
}

func TestWalkMissingRootReturnsTopOnly(t *testing.T) {
	entries, err := Walk(context.Background(), filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "." {
		t.Fatalf("entries = %+v, want single synthetic top entry", entries)
	}
}

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

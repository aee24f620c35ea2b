package flist

import (
	"sort"
	"testing"
)

func mkEntry(path string) *Entry {
	e := &Entry{Path: path, Mode: IsFile}
	if len(path) > 0 && path[len(path)-1] == '/' {
		e.Mode = IsDir
	}
	return e
}

func TestCompareGloballySortExample(t *testing.T) {
	paths := []string{
		"x", "d/c/f", "d/", "d/e", "d/c/", "d/c ", "ad/", "ad/ef", "b", "f",
	}
	want := []string{
		"b", "f", "x", "ad/", "ad/ef", "d/", "d/c ", "d/e", "d/c/", "d/c/f",
	}

	entries := make([]*Entry, len(paths))
	for i, p := range paths {
		entries[i] = mkEntry(p)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return CompareGlobally(entries[i], entries[j]) < 0
	})

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Path
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted[%d] = %q, want %q\nfull got: %v", i, got[i], want[i], got)
		}
	}
}

func TestCompareGloballyDirVsPlainNameTieBreak(t *testing.T) {
	dir := mkEntry("dir/")
	plain := &Entry{Path: "dir", Mode: IsFile}
	if CompareGlobally(dir, plain) >= 0 {
		t.Fatalf("expected dir/ to sort before plain name dir")
	}
}

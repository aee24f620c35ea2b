package flist

import "strings"

// CompareLocally orders siblings the way the local filesystem walker
// emits them before recursing: directories before files within the
// same parent, then byte-lexical on the full path.
func CompareLocally(a, b *Entry) int {
	ad, bd := a.IsDirectory(), b.IsDirectory()
	if ad != bd {
		if ad {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Path, b.Path)
}

// CompareGlobally is the canonical cross-list order both the remote
// and local file lists are sorted into before ListReconciler's
// two-pointer merge. Unlike CompareLocally, files sort before
// directories at each level — this
// matches the wire file-list order a real rsync peer emits — and a
// directory's own entry sorts before its descendants, which then
// follow it immediately (depth-first).
func CompareGlobally(a, b *Entry) int {
	return comparePaths(a.Path, b.Path)
}

func comparePaths(a, b string) int {
	if a == b {
		return 0
	}
	ac := strings.Split(a, "/")
	bc := strings.Split(b, "/")
	i := 0
	for i < len(ac) && i < len(bc) && ac[i] == bc[i] {
		i++
	}
	switch {
	case i == len(ac) && i == len(bc):
		return 0
	case i == len(ac):
		// a is exhausted; b continues. Special tie-break: "dir/" sorts
		// earlier than the plain-name "dir" it would otherwise be a
		// byte-prefix of.
		if i == len(bc)-1 && bc[i] == "" {
			return 1
		}
		return -1
	case i == len(bc):
		if i == len(ac)-1 && ac[i] == "" {
			return -1
		}
		return 1
	default:
		terminalA := i == len(ac)-1
		terminalB := i == len(bc)-1
		if terminalA != terminalB {
			// One side's path ends here (a file, or a directory's own
			// "" terminator); the other continues into a deeper
			// subtree at this position. The terminating side is a
			// sibling entry and sorts first regardless of its byte
			// value against the continuing side's branch name:
			// files/self-entries sort before descendants of a
			// differently-named sibling directory.
			if terminalA {
				return -1
			}
			return 1
		}
		return strings.Compare(ac[i], bc[i])
	}
}

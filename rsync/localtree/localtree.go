// Package localtree enumerates a local directory tree into the same
// []*flist.Entry shape the wire codec produces, for comparison against
// a remote file list.
//
// Grounded on gokr-rsync's receiver deleteFiles filepath.Walk usage
// for the overall walk shape, and on rclone's backend/local filename
// normalization for the Darwin NFC handling, generalized here from a
// delete-only walk into a full entry-producing one bounded by
// golang.org/x/sync/errgroup.
package localtree

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/gilbertchen/acrosync-library/rsync/flist"
)

// reservedDir is never walked into or listed.
const reservedDir = ".acrosync"

// statConcurrency bounds the number of directories stat'd/read
// concurrently during enumeration.
const statConcurrency = 8

// Walk enumerates root into a flat list of entries with paths relative
// to root, sorted by flist.CompareGlobally, synthesizing a "." head
// entry. Symlinks are recorded but not followed.
func Walk(ctx context.Context, root string) ([]*flist.Entry, error) {
	info, err := os.Lstat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return []*flist.Entry{{Path: ".", Mode: flist.IsDir | 0o755}}, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "localtree.Walk", Path: root, Err: os.ErrInvalid}
	}

	var mu sync.Mutex
	entries := []*flist.Entry{{Path: ".", Mode: flist.IsDir | uint32(modeBits(info))}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	var walkDir func(relPath, absPath string) error
	walkDir = func(relPath, absPath string) error {
		names, err := readDirNames(absPath)
		if err != nil {
			return err
		}
		for _, name := range names {
			if relPath == "." && name == reservedDir {
				continue
			}
			childRel := name
			if relPath != "." {
				childRel = relPath + "/" + name
			}
			childAbs := filepath.Join(absPath, name)

			childRel = normalizeName(childRel)
			lst, err := os.Lstat(childAbs)
			if err != nil {
				continue // vanished between readdir and lstat; skip
			}
			e := entryFromInfo(childRel, lst, childAbs)

			mu.Lock()
			entries = append(entries, e)
			mu.Unlock()

			if e.IsDirectory() {
				rel := childRel
				abs := childAbs
				g.Go(func() error {
					select {
					case <-gctx.Done():
						return gctx.Err()
					default:
					}
					return walkDir(rel, abs)
				})
			}
		}
		return nil
	}

	if err := walkDir(".", root); err != nil {
		return nil, err
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return flist.CompareGlobally(entries[i], entries[j]) < 0
	})
	return entries, nil
}

func readDirNames(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return f.Readdirnames(-1)
}

func entryFromInfo(relPath string, info os.FileInfo, absPath string) *flist.Entry {
	e := &flist.Entry{
		Path: relPath,
		Size: info.Size(),
		Time: info.ModTime().Unix(),
		Mode: modeBits(info),
	}
	if info.Mode()&os.ModeSymlink != 0 {
		e.Mode |= flist.IsFile | flist.IsLink
		if target, err := os.Readlink(absPath); err == nil {
			e.Symlink = target
		}
	} else if info.IsDir() {
		e.Mode |= flist.IsDir
	} else if info.Mode().IsRegular() {
		e.Mode |= flist.IsFile
	}
	e.Normalize()
	return e
}

func modeBits(info os.FileInfo) uint32 {
	var m uint32
	perm := info.Mode().Perm()
	m |= uint32(perm)
	if info.IsDir() {
		m |= flist.IsDir
	}
	return m
}

// normalizeName applies UTF-8-MAC to UTF-8 NFC normalization on
// Darwin, where HFS+/APFS store decomposed Unicode. Elsewhere it is
// the identity function.
func normalizeName(name string) string {
	if runtime.GOOS != "darwin" {
		return name
	}
	return norm.NFC.String(name)
}

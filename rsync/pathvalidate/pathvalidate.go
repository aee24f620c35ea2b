// Package pathvalidate rejects remote path components that are legal
// on POSIX senders but forbidden on the destination filesystem.
//
// Grounded on gokr-rsync's receiver path sanitization and on rclone's
// cross-platform filename restriction tables, which reject the same
// Windows-reserved byte set.
package pathvalidate

import "strings"

// allowed is a fixed 256-entry table: allowed[b] is true iff byte b may
// appear in path text on the target filesystem. Control characters,
// the cross-platform reserved set <>:"/\|?*, and all non-ASCII bytes
// are disallowed. "/" is forbidden as a literal byte within a
// component but is, of course, the path's own component separator;
// Valid and FirstInvalidByte split on it before checking.
var allowed [256]bool

func init() {
	for b := 0x20; b < 0x7F; b++ {
		allowed[b] = true
	}
	for _, b := range []byte(`<>:"/\|?*`) {
		allowed[b] = false
	}
}

// ByteAllowed reports whether b may appear in a path component,
// independent of its role as a separator.
func ByteAllowed(b byte) bool {
	return allowed[b]
}

// Valid reports whether every component of path (split on "/") is
// permitted.
func Valid(path string) bool {
	for _, part := range strings.Split(path, "/") {
		for i := 0; i < len(part); i++ {
			if !allowed[part[i]] {
				return false
			}
		}
	}
	return true
}

// FirstInvalidByte returns the first disallowed byte in path and true,
// or (0, false) if path is valid.
func FirstInvalidByte(path string) (byte, bool) {
	for _, part := range strings.Split(path, "/") {
		for i := 0; i < len(part); i++ {
			if !allowed[part[i]] {
				return part[i], true
			}
		}
	}
	return 0, false
}

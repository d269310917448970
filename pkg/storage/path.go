package storage

import (
	"strings"
)

// splitPath resolves a virtual path into root-relative segments. "."
// segments and empty segments are ignored; ".." pops one level and is
// clamped at the root, so no input can resolve above it.
func splitPath(path string) []string {
	segments := make([]string, 0, 8)
	for _, s := range strings.Split(path, "/") {
		switch s {
		case "", ".":
		case "..":
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
		default:
			segments = append(segments, s)
		}
	}
	return segments
}

// Normalize returns the canonical root-relative form of a virtual path.
// The root itself normalizes to the empty string.
func Normalize(path string) string {
	return strings.Join(splitPath(path), "/")
}

package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotInitialized is returned when an adapter is used before Initialize
	ErrNotInitialized = errors.New("storage adapter not initialized")

	// ErrInvalidPath is returned when a path normalizes to the root where a
	// file or removable entry is required
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound is returned when a path or an intermediate directory on a
	// read operation does not exist
	ErrNotFound = errors.New("not found")
)

// FileInfo describes one stored entry
type FileInfo struct {
	Size    int64
	IsFile  bool
	IsDir   bool
	ModTime time.Time
}

// DirEntry is one name inside a directory listing, with its kind
type DirEntry struct {
	Name   string
	IsFile bool
	IsDir  bool
}

// Adapter is the portable storage contract shared by both backends. All
// paths are virtual: slash-delimited and scoped to the adapter's configured
// root. Every operation normalizes its path before touching the backend, so
// "." segments are ignored and ".." segments pop one level without ever
// escaping above the root.
//
// Initialize must succeed before any other call; until then every operation
// fails with ErrNotInitialized. The root always exists, reports as a
// directory, and can never be the target of RemoveFile, RemoveDir, or
// ReadFile.
type Adapter interface {
	// Initialize ensures the root container exists. Idempotent.
	Initialize() error

	// ReadFile returns the full content of a file
	ReadFile(path string) ([]byte, error)

	// WriteFile creates or truncates a file, creating parent directories
	// as needed
	WriteFile(path string, data []byte) error

	// AppendFile appends to a file, creating it if absent. Neither backend
	// offers a true O(1) append, so this reads the existing bytes,
	// concatenates, and rewrites.
	AppendFile(path string, data []byte) error

	// Mkdir creates a directory. With recursive set, missing parents are
	// created; without it, a missing parent is ErrNotFound.
	Mkdir(path string, recursive bool) error

	// ReadDir lists the names inside a directory, sorted ascending
	ReadDir(path string) ([]string, error)

	// ReadDirWithTypes lists a directory with entry kinds
	ReadDirWithTypes(path string) ([]DirEntry, error)

	// RemoveDir removes a directory; with recursive set its contents go too
	RemoveDir(path string, recursive bool) error

	// RemoveFile removes a single file
	RemoveFile(path string) error

	// Exists reports whether the path exists. Never returns an error.
	Exists(path string) bool

	// IsFile reports whether the path exists and is a file
	IsFile(path string) bool

	// IsDir reports whether the path exists and is a directory
	IsDir(path string) bool

	// Stat returns metadata for a path
	Stat(path string) (*FileInfo, error)

	// Rename moves an entry. Backends with no native rename for the entry
	// kind emulate it as copy-then-delete.
	Rename(oldPath, newPath string) error

	// CopyFile copies a single file
	CopyFile(src, dst string) error
}

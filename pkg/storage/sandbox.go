package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// sandboxEntry is one node in the sandboxed hierarchical store. Directories
// hold child handles by name; files hold their bytes.
type sandboxEntry struct {
	dir      bool
	children map[string]*sandboxEntry
	data     []byte
	modTime  time.Time
}

func newSandboxDir() *sandboxEntry {
	return &sandboxEntry{
		dir:      true,
		children: make(map[string]*sandboxEntry),
		modTime:  time.Now(),
	}
}

// SandboxAdapter is the sandboxed, handle-based hierarchical store. Every
// path resolution walks directory handles child by child from the root, the
// way a sandboxed file API hands out one handle per level. The backend has
// no native rename and no true append; both are emulated.
type SandboxAdapter struct {
	mu          sync.RWMutex
	root        *sandboxEntry
	initialized bool
}

// NewSandboxAdapter creates an empty sandboxed store. Initialize must be
// called before any other operation.
func NewSandboxAdapter() *SandboxAdapter {
	return &SandboxAdapter{}
}

// Initialize creates the root container. Idempotent.
func (a *SandboxAdapter) Initialize() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.root == nil {
		a.root = newSandboxDir()
	}
	a.initialized = true
	return nil
}

// walk descends directory handles to the entry named by segments. Returns
// ErrNotFound when any level is missing or a non-directory is traversed.
func (a *SandboxAdapter) walk(segments []string) (*sandboxEntry, error) {
	cur := a.root
	for _, name := range segments {
		if !cur.dir {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		next, ok := cur.children[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		cur = next
	}
	return cur, nil
}

// walkDir descends to the parent directory of segments, optionally creating
// missing directories along the way.
func (a *SandboxAdapter) walkDir(segments []string, create bool) (*sandboxEntry, error) {
	cur := a.root
	for _, name := range segments {
		next, ok := cur.children[name]
		if !ok {
			if !create {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
			}
			next = newSandboxDir()
			cur.children[name] = next
		}
		if !next.dir {
			return nil, fmt.Errorf("not a directory: %s", name)
		}
		cur = next
	}
	return cur, nil
}

// fileSegments normalizes a path that must name a file (root is invalid)
func (a *SandboxAdapter) fileSegments(path string) ([]string, error) {
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q resolves to the root", ErrInvalidPath, path)
	}
	return segments, nil
}

func (a *SandboxAdapter) ReadFile(path string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	segments, err := a.fileSegments(path)
	if err != nil {
		return nil, err
	}
	entry, err := a.walk(segments)
	if err != nil {
		return nil, err
	}
	if entry.dir {
		return nil, fmt.Errorf("not a file: %s", Normalize(path))
	}
	out := make([]byte, len(entry.data))
	copy(out, entry.data)
	return out, nil
}

func (a *SandboxAdapter) WriteFile(path string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.writeLocked(path, data)
}

func (a *SandboxAdapter) writeLocked(path string, data []byte) error {
	segments, err := a.fileSegments(path)
	if err != nil {
		return err
	}
	parent, err := a.walkDir(segments[:len(segments)-1], true)
	if err != nil {
		return err
	}
	name := segments[len(segments)-1]
	if existing, ok := parent.children[name]; ok && existing.dir {
		return fmt.Errorf("not a file: %s", Normalize(path))
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	parent.children[name] = &sandboxEntry{data: stored, modTime: time.Now()}
	return nil
}

func (a *SandboxAdapter) AppendFile(path string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	segments, err := a.fileSegments(path)
	if err != nil {
		return err
	}
	var existing []byte
	if entry, err := a.walk(segments); err == nil {
		if entry.dir {
			return fmt.Errorf("not a file: %s", Normalize(path))
		}
		existing = entry.data
	}
	combined := make([]byte, 0, len(existing)+len(data))
	combined = append(combined, existing...)
	combined = append(combined, data...)
	return a.writeLocked(path, combined)
}

func (a *SandboxAdapter) Mkdir(path string, recursive bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.initialized {
		return ErrNotInitialized
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil // root already exists
	}
	parent, err := a.walkDir(segments[:len(segments)-1], recursive)
	if err != nil {
		return err
	}
	name := segments[len(segments)-1]
	if existing, ok := parent.children[name]; ok {
		if existing.dir {
			return nil
		}
		return fmt.Errorf("not a directory: %s", Normalize(path))
	}
	parent.children[name] = newSandboxDir()
	return nil
}

func (a *SandboxAdapter) ReadDir(path string) ([]string, error) {
	entries, err := a.ReadDirWithTypes(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}

func (a *SandboxAdapter) ReadDirWithTypes(path string) ([]DirEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	entry, err := a.walk(splitPath(path))
	if err != nil {
		return nil, err
	}
	if !entry.dir {
		return nil, fmt.Errorf("not a directory: %s", Normalize(path))
	}
	entries := make([]DirEntry, 0, len(entry.children))
	for name, child := range entry.children {
		entries = append(entries, DirEntry{
			Name:   name,
			IsFile: !child.dir,
			IsDir:  child.dir,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (a *SandboxAdapter) RemoveDir(path string, recursive bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	segments, err := a.fileSegments(path) // root may not be removed
	if err != nil {
		return err
	}
	parent, err := a.walk(segments[:len(segments)-1])
	if err != nil {
		return err
	}
	name := segments[len(segments)-1]
	entry, ok := parent.children[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
	}
	if !entry.dir {
		return fmt.Errorf("not a directory: %s", Normalize(path))
	}
	if !recursive && len(entry.children) > 0 {
		return fmt.Errorf("directory not empty: %s", Normalize(path))
	}
	delete(parent.children, name)
	return nil
}

func (a *SandboxAdapter) RemoveFile(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	segments, err := a.fileSegments(path)
	if err != nil {
		return err
	}
	parent, err := a.walk(segments[:len(segments)-1])
	if err != nil {
		return err
	}
	name := segments[len(segments)-1]
	entry, ok := parent.children[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
	}
	if entry.dir {
		return fmt.Errorf("not a file: %s", Normalize(path))
	}
	delete(parent.children, name)
	return nil
}

func (a *SandboxAdapter) Exists(path string) bool {
	info, err := a.Stat(path)
	return err == nil && info != nil
}

func (a *SandboxAdapter) IsFile(path string) bool {
	info, err := a.Stat(path)
	return err == nil && info.IsFile
}

func (a *SandboxAdapter) IsDir(path string) bool {
	info, err := a.Stat(path)
	return err == nil && info.IsDir
}

func (a *SandboxAdapter) Stat(path string) (*FileInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	entry, err := a.walk(splitPath(path))
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Size:    int64(len(entry.data)),
		IsFile:  !entry.dir,
		IsDir:   entry.dir,
		ModTime: entry.modTime,
	}, nil
}

// Rename moves an entry. The sandboxed backend has no native rename, so
// this re-attaches the subtree under the new parent and deletes the old
// link (copy-then-delete of the handle, not of the bytes).
func (a *SandboxAdapter) Rename(oldPath, newPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	oldSegments, err := a.fileSegments(oldPath)
	if err != nil {
		return err
	}
	newSegments, err := a.fileSegments(newPath)
	if err != nil {
		return err
	}
	oldParent, err := a.walk(oldSegments[:len(oldSegments)-1])
	if err != nil {
		return err
	}
	oldName := oldSegments[len(oldSegments)-1]
	entry, ok := oldParent.children[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, Normalize(oldPath))
	}
	newParent, err := a.walkDir(newSegments[:len(newSegments)-1], true)
	if err != nil {
		return err
	}
	newParent.children[newSegments[len(newSegments)-1]] = entry
	delete(oldParent.children, oldName)
	entry.modTime = time.Now()
	return nil
}

func (a *SandboxAdapter) CopyFile(src, dst string) error {
	data, err := a.ReadFile(src)
	if err != nil {
		return err
	}
	return a.WriteFile(dst, data)
}

// interface conformance
var (
	_ Adapter = (*SandboxAdapter)(nil)
	_ Adapter = (*NativeAdapter)(nil)
)

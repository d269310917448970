package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// NativeAdapter stores entries under a directory on the host filesystem.
// Renames use the OS primitive; appends are emulated read-concat-rewrite to
// keep the contract identical to the sandboxed backend.
type NativeAdapter struct {
	root        string
	initialized bool
}

// NewNativeAdapter creates an adapter rooted at the given host directory.
// Initialize must be called before any other operation.
func NewNativeAdapter(root string) *NativeAdapter {
	return &NativeAdapter{root: root}
}

// Initialize ensures the root directory exists. Idempotent.
func (a *NativeAdapter) Initialize() error {
	if err := os.MkdirAll(a.root, 0755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}
	a.initialized = true
	return nil
}

// hostPath maps normalized segments onto the host filesystem
func (a *NativeAdapter) hostPath(segments []string) string {
	return filepath.Join(append([]string{a.root}, segments...)...)
}

// filePath normalizes a path that must name a file (root is invalid)
func (a *NativeAdapter) filePath(path string) (string, error) {
	if !a.initialized {
		return "", ErrNotInitialized
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %q resolves to the root", ErrInvalidPath, path)
	}
	return a.hostPath(segments), nil
}

func (a *NativeAdapter) ReadFile(path string) ([]byte, error) {
	p, err := a.filePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
		}
		return nil, err
	}
	return data, nil
}

func (a *NativeAdapter) WriteFile(path string, data []byte) error {
	p, err := a.filePath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	return os.WriteFile(p, data, 0644)
}

func (a *NativeAdapter) AppendFile(path string, data []byte) error {
	existing, err := a.ReadFile(path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	combined := make([]byte, 0, len(existing)+len(data))
	combined = append(combined, existing...)
	combined = append(combined, data...)
	return a.WriteFile(path, combined)
}

func (a *NativeAdapter) Mkdir(path string, recursive bool) error {
	if !a.initialized {
		return ErrNotInitialized
	}
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil // root already exists
	}
	p := a.hostPath(segments)
	if recursive {
		return os.MkdirAll(p, 0755)
	}
	if err := os.Mkdir(p, 0755); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: parent of %s", ErrNotFound, Normalize(path))
		}
		if os.IsExist(err) {
			return nil
		}
		return err
	}
	return nil
}

func (a *NativeAdapter) ReadDir(path string) ([]string, error) {
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

func (a *NativeAdapter) ReadDirWithTypes(path string) ([]DirEntry, error) {
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	p := a.hostPath(splitPath(path))
	list, err := os.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
		}
		return nil, err
	}
	entries := make([]DirEntry, 0, len(list))
	for _, e := range list {
		entries = append(entries, DirEntry{
			Name:   e.Name(),
			IsFile: !e.IsDir(),
			IsDir:  e.IsDir(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (a *NativeAdapter) RemoveDir(path string, recursive bool) error {
	p, err := a.filePath(path) // root may not be removed
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", Normalize(path))
	}
	if recursive {
		return os.RemoveAll(p)
	}
	return os.Remove(p)
}

func (a *NativeAdapter) RemoveFile(path string) error {
	p, err := a.filePath(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
		}
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("not a file: %s", Normalize(path))
	}
	return os.Remove(p)
}

func (a *NativeAdapter) Exists(path string) bool {
	info, err := a.Stat(path)
	return err == nil && info != nil
}

func (a *NativeAdapter) IsFile(path string) bool {
	info, err := a.Stat(path)
	return err == nil && info.IsFile
}

func (a *NativeAdapter) IsDir(path string) bool {
	info, err := a.Stat(path)
	return err == nil && info.IsDir
}

func (a *NativeAdapter) Stat(path string) (*FileInfo, error) {
	if !a.initialized {
		return nil, ErrNotInitialized
	}
	p := a.hostPath(splitPath(path))
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, Normalize(path))
		}
		return nil, err
	}
	return &FileInfo{
		Size:    info.Size(),
		IsFile:  !info.IsDir(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
	}, nil
}

func (a *NativeAdapter) Rename(oldPath, newPath string) error {
	src, err := a.filePath(oldPath)
	if err != nil {
		return err
	}
	dst, err := a.filePath(newPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, Normalize(oldPath))
		}
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	return os.Rename(src, dst)
}

func (a *NativeAdapter) CopyFile(src, dst string) error {
	data, err := a.ReadFile(src)
	if err != nil {
		return err
	}
	return a.WriteFile(dst, data)
}

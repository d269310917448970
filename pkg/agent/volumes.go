package agent

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/skiff-run/skiff/pkg/storage"
	"github.com/skiff-run/skiff/pkg/types"
)

const volumesDir = "volumes"

// Volumes manages the node's local volume directories on top of a
// storage adapter. Each volume is a directory under volumes/<name>;
// the layout is identical on the native and sandboxed backends.
type Volumes struct {
	adapter storage.Adapter
}

// NewVolumes creates a volume store backed by the given adapter
func NewVolumes(adapter storage.Adapter) *Volumes {
	return &Volumes{adapter: adapter}
}

// validVolumeName rejects names that would escape the volumes directory
func validVolumeName(name string) error {
	if name == "" {
		return fmt.Errorf("volume name is required")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid volume name: %s", name)
	}
	return nil
}

// Path returns the adapter path of a volume's root directory
func (v *Volumes) Path(name string) string {
	return volumesDir + "/" + name
}

// Ensure creates the volume directory if it does not exist
func (v *Volumes) Ensure(name string) error {
	if err := validVolumeName(name); err != nil {
		return err
	}
	if err := v.adapter.Mkdir(v.Path(name), true); err != nil {
		return fmt.Errorf("failed to create volume directory: %w", err)
	}
	return nil
}

// Remove deletes the volume directory and all of its contents.
// Removing a volume that does not exist is a no-op.
func (v *Volumes) Remove(name string) error {
	if err := validVolumeName(name); err != nil {
		return err
	}
	path := v.Path(name)
	if !v.adapter.Exists(path) {
		return nil
	}
	if err := v.adapter.RemoveDir(path, true); err != nil {
		return fmt.Errorf("failed to delete volume directory: %w", err)
	}
	return nil
}

// Exists reports whether the volume directory is present on disk
func (v *Volumes) Exists(name string) bool {
	if err := validVolumeName(name); err != nil {
		return false
	}
	return v.adapter.IsDir(v.Path(name))
}

// List returns the names of all volume directories on this node
func (v *Volumes) List() ([]string, error) {
	if !v.adapter.Exists(volumesDir) {
		return nil, nil
	}

	entries, err := v.adapter.ReadDirWithTypes(volumesDir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir {
			names = append(names, entry.Name)
		}
	}
	return names, nil
}

// Files enumerates every file under a volume recursively and returns
// wire entries: paths relative to the volume root and base64 content.
// The walk reads the node's disk directly; the registry is never
// consulted here.
func (v *Volumes) Files(name string) ([]types.VolumeFileEntry, error) {
	if err := validVolumeName(name); err != nil {
		return nil, err
	}

	root := v.Path(name)
	if !v.adapter.IsDir(root) {
		return nil, fmt.Errorf("volume %s does not exist on this node", name)
	}

	files := []types.VolumeFileEntry{}
	if err := v.collect(root, "", &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (v *Volumes) collect(dir, rel string, files *[]types.VolumeFileEntry) error {
	entries, err := v.adapter.ReadDirWithTypes(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		childPath := dir + "/" + entry.Name
		childRel := entry.Name
		if rel != "" {
			childRel = rel + "/" + entry.Name
		}

		if entry.IsDir {
			if err := v.collect(childPath, childRel, files); err != nil {
				return err
			}
			continue
		}

		data, err := v.adapter.ReadFile(childPath)
		if err != nil {
			return fmt.Errorf("failed to read volume file %s: %w", childRel, err)
		}
		*files = append(*files, types.VolumeFileEntry{
			Path: childRel,
			Data: base64.StdEncoding.EncodeToString(data),
		})
	}
	return nil
}

package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/skiff-run/skiff/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// ErrNotFound is returned when a record does not exist. A registry miss
	// is a normal outcome for callers like the download path.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a volume name already exists on a node
	ErrConflict = errors.New("volume name already exists on node")
)

var (
	// Bucket names
	bucketNodes       = []byte("nodes")
	bucketPods        = []byte("pods")
	bucketServices    = []byte("services")
	bucketVolumes     = []byte("volumes")
	bucketVolumeNames = []byte("volume_names") // nodeID/name -> volume ID
)

// Store is the BoltDB-backed metadata registry for the control plane
type Store struct {
	db *bolt.DB
}

// volumeNameKey is the unique index key for the (name, nodeID) invariant
func volumeNameKey(nodeID, name string) []byte {
	return []byte(nodeID + "/" + name)
}

// NewStore opens (or creates) the registry database under dataDir
func NewStore(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "skiff.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketNodes,
			bucketPods,
			bucketServices,
			bucketVolumes,
			bucketVolumeNames,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateVolume inserts a new volume record with a server-assigned id and
// timestamps. Fails with ErrConflict if (name, nodeID) already exists.
func (s *Store) CreateVolume(name, nodeID string) (*types.Volume, error) {
	now := time.Now().UTC()
	volume := &types.Volume{
		ID:        uuid.New().String(),
		Name:      name,
		NodeID:    nodeID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketVolumeNames)
		key := volumeNameKey(nodeID, name)
		if names.Get(key) != nil {
			return fmt.Errorf("%w: %s on %s", ErrConflict, name, nodeID)
		}

		data, err := json.Marshal(volume)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketVolumes).Put([]byte(volume.ID), data); err != nil {
			return err
		}
		return names.Put(key, []byte(volume.ID))
	})
	if err != nil {
		return nil, err
	}
	return volume, nil
}

// GetVolume retrieves a volume by id
func (s *Store) GetVolume(id string) (*types.Volume, error) {
	var volume types.Volume
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketVolumes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: volume %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &volume)
	})
	if err != nil {
		return nil, err
	}
	return &volume, nil
}

// GetVolumeByNameAndNode retrieves a volume by its node-scoped name
func (s *Store) GetVolumeByNameAndNode(name, nodeID string) (*types.Volume, error) {
	var volume types.Volume
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketVolumeNames).Get(volumeNameKey(nodeID, name))
		if id == nil {
			return fmt.Errorf("%w: volume %s on %s", ErrNotFound, name, nodeID)
		}
		data := tx.Bucket(bucketVolumes).Get(id)
		if data == nil {
			return fmt.Errorf("%w: volume %s on %s", ErrNotFound, name, nodeID)
		}
		return json.Unmarshal(data, &volume)
	})
	if err != nil {
		return nil, err
	}
	return &volume, nil
}

// VolumeExists reports whether a node-scoped volume name is registered
func (s *Store) VolumeExists(name, nodeID string) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		exists = tx.Bucket(bucketVolumeNames).Get(volumeNameKey(nodeID, name)) != nil
		return nil
	})
	return exists, err
}

// ListVolumes returns all volumes, optionally filtered to one node
// (empty nodeID means all nodes)
func (s *Store) ListVolumes(nodeID string) ([]*types.Volume, error) {
	var volumes []*types.Volume
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVolumes).ForEach(func(k, v []byte) error {
			var volume types.Volume
			if err := json.Unmarshal(v, &volume); err != nil {
				return err
			}
			if nodeID != "" && volume.NodeID != nodeID {
				return nil
			}
			volumes = append(volumes, &volume)
			return nil
		})
	})
	return volumes, err
}

// DeleteVolume removes a volume record by its node-scoped name. Deleting a
// missing volume is ErrNotFound. Mounts referencing the name are not
// touched; dangling references are tolerated by design.
func (s *Store) DeleteVolume(name, nodeID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketVolumeNames)
		key := volumeNameKey(nodeID, name)
		id := names.Get(key)
		if id == nil {
			return fmt.Errorf("%w: volume %s on %s", ErrNotFound, name, nodeID)
		}
		if err := tx.Bucket(bucketVolumes).Delete(id); err != nil {
			return err
		}
		return names.Delete(key)
	})
}

// Node operations

// SaveNode upserts a node record
func (s *Store) SaveNode(node *types.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(node)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketNodes).Put([]byte(node.ID), data)
	})
}

// GetNode retrieves a node by id
func (s *Store) GetNode(id string) (*types.Node, error) {
	var node types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketNodes).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: node %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &node)
	})
	if err != nil {
		return nil, err
	}
	return &node, nil
}

// ListNodes returns all known nodes
func (s *Store) ListNodes() ([]*types.Node, error) {
	var nodes []*types.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node types.Node
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			nodes = append(nodes, &node)
			return nil
		})
	})
	return nodes, err
}

// DeleteNode removes a node record
func (s *Store) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Delete([]byte(id))
	})
}

// Pod operations

// SavePod upserts a pod record
func (s *Store) SavePod(pod *types.Pod) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(pod)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketPods).Put([]byte(pod.ID), data)
	})
}

// GetPod retrieves a pod by id
func (s *Store) GetPod(id string) (*types.Pod, error) {
	var pod types.Pod
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketPods).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: pod %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &pod)
	})
	if err != nil {
		return nil, err
	}
	return &pod, nil
}

// ListPodsByNode returns all pods scheduled on a node
func (s *Store) ListPodsByNode(nodeID string) ([]*types.Pod, error) {
	var pods []*types.Pod
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPods).ForEach(func(k, v []byte) error {
			var pod types.Pod
			if err := json.Unmarshal(v, &pod); err != nil {
				return err
			}
			if pod.NodeID == nodeID {
				pods = append(pods, &pod)
			}
			return nil
		})
	})
	return pods, err
}

// DeletePod removes a pod record
func (s *Store) DeletePod(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPods).Delete([]byte(id))
	})
}

// Service operations

// SaveService upserts a service record
func (s *Store) SaveService(service *types.Service) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(service)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketServices).Put([]byte(service.ID), data)
	})
}

// GetService retrieves a service by id
func (s *Store) GetService(id string) (*types.Service, error) {
	var service types.Service
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketServices).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: service %s", ErrNotFound, id)
		}
		return json.Unmarshal(data, &service)
	})
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// ListServices returns all services
func (s *Store) ListServices() ([]*types.Service, error) {
	var services []*types.Service
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketServices).ForEach(func(k, v []byte) error {
			var service types.Service
			if err := json.Unmarshal(v, &service); err != nil {
				return err
			}
			services = append(services, &service)
			return nil
		})
	})
	return services, err
}

// DeleteService removes a service record
func (s *Store) DeleteService(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketServices).Delete([]byte(id))
	})
}

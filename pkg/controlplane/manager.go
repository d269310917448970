package controlplane

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skiff-run/skiff/pkg/events"
	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/metrics"
	"github.com/skiff-run/skiff/pkg/registry"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/types"
)

// Config holds configuration for creating a Manager
type Config struct {
	DataDir string

	// DownloadTimeout bounds how long a volume download waits for a node
	// reply. Zero means retrieval.DefaultDownloadTimeout.
	DownloadTimeout time.Duration
}

// Manager is the Skiff control plane: it owns the metadata registry,
// tracks pending volume downloads, and publishes cluster events.
type Manager struct {
	store     *registry.Store
	downloads *retrieval.Downloads
	directory retrieval.Directory
	broker    *events.Broker
	logger    zerolog.Logger
}

// NewManager creates a new Manager instance. The directory abstracts how
// envelopes reach nodes, so the same manager runs against a websocket hub
// in production and an in-process directory in tests.
func NewManager(cfg *Config, directory retrieval.Directory) (*Manager, error) {
	store, err := registry.NewStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	return &Manager{
		store:     store,
		downloads: retrieval.NewDownloads(cfg.DownloadTimeout),
		directory: directory,
		broker:    broker,
		logger:    log.WithComponent("controlplane"),
	}, nil
}

// Store exposes the metadata registry
func (m *Manager) Store() *registry.Store {
	return m.store
}

// Events exposes the cluster event broker
func (m *Manager) Events() *events.Broker {
	return m.broker
}

// Close stops the event broker and closes the registry
func (m *Manager) Close() error {
	m.broker.Stop()
	return m.store.Close()
}

// Volume operations

// CreateVolume registers a node-scoped volume name. The record is
// advisory metadata: creating it does not touch the node's disk.
func (m *Manager) CreateVolume(name, nodeID string) (*types.Volume, error) {
	volume, err := m.store.CreateVolume(name, nodeID)
	if err != nil {
		return nil, err
	}

	metrics.VolumesTotal.Inc()
	m.broker.Publish(events.NewEvent(events.EventVolumeCreated,
		fmt.Sprintf("Volume %s created on node %s", name, nodeID),
		map[string]string{"volume": name, "node": nodeID}))

	m.logger.Info().Str("volume", name).Str("node_id", nodeID).Msg("Volume created")
	return volume, nil
}

// DeleteVolume removes a volume record. Pods still mounting the name keep
// running; the dangling reference is tolerated.
func (m *Manager) DeleteVolume(name, nodeID string) error {
	if err := m.store.DeleteVolume(name, nodeID); err != nil {
		return err
	}

	metrics.VolumesTotal.Dec()
	m.broker.Publish(events.NewEvent(events.EventVolumeDeleted,
		fmt.Sprintf("Volume %s deleted from node %s", name, nodeID),
		map[string]string{"volume": name, "node": nodeID}))

	m.logger.Info().Str("volume", name).Str("node_id", nodeID).Msg("Volume deleted")
	return nil
}

// ListVolumes returns all volumes, optionally filtered to one node
func (m *Manager) ListVolumes(nodeID string) ([]*types.Volume, error) {
	return m.store.ListVolumes(nodeID)
}

// GetVolume retrieves a volume by its node-scoped name
func (m *Manager) GetVolume(name, nodeID string) (*types.Volume, error) {
	return m.store.GetVolumeByNameAndNode(name, nodeID)
}

// Node operations

// RegisterNode records a node as known and ready
func (m *Manager) RegisterNode(node *types.Node) error {
	if node.ID == "" {
		return fmt.Errorf("node id is required")
	}
	node.Status = types.NodeStatusReady
	node.LastHeartbeat = time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = node.LastHeartbeat
	}

	if err := m.store.SaveNode(node); err != nil {
		return fmt.Errorf("failed to save node: %w", err)
	}

	m.broker.Publish(events.NewEvent(events.EventNodeConnected,
		fmt.Sprintf("Node %s connected", node.ID),
		map[string]string{"node": node.ID}))

	m.logger.Info().Str("node_id", node.ID).Str("address", node.Address).Msg("Node registered")
	return nil
}

// Heartbeat refreshes a node's liveness timestamp
func (m *Manager) Heartbeat(nodeID string) error {
	node, err := m.store.GetNode(nodeID)
	if err != nil {
		return err
	}
	node.Status = types.NodeStatusReady
	node.LastHeartbeat = time.Now().UTC()
	return m.store.SaveNode(node)
}

// MarkNodeDown flags a node as disconnected without deleting its record
func (m *Manager) MarkNodeDown(nodeID string) error {
	node, err := m.store.GetNode(nodeID)
	if err != nil {
		return err
	}
	node.Status = types.NodeStatusDown
	if err := m.store.SaveNode(node); err != nil {
		return err
	}

	m.broker.Publish(events.NewEvent(events.EventNodeDisconnected,
		fmt.Sprintf("Node %s disconnected", nodeID),
		map[string]string{"node": nodeID}))

	m.logger.Warn().Str("node_id", nodeID).Msg("Node marked down")
	return nil
}

// ListNodes returns all known nodes
func (m *Manager) ListNodes() ([]*types.Node, error) {
	return m.store.ListNodes()
}

// Workload operations

// CreatePod validates the pod's mounts and persists it
func (m *Manager) CreatePod(pod *types.Pod) error {
	if err := validateMounts(pod.Mounts); err != nil {
		return err
	}

	now := time.Now().UTC()
	if pod.ID == "" {
		pod.ID = uuid.New().String()
	}
	if pod.State == "" {
		pod.State = types.PodStatePending
	}
	pod.CreatedAt = now
	pod.UpdatedAt = now

	if err := m.store.SavePod(pod); err != nil {
		return fmt.Errorf("failed to save pod: %w", err)
	}

	m.broker.Publish(events.NewEvent(events.EventPodCreated,
		fmt.Sprintf("Pod %s created on node %s", pod.Name, pod.NodeID),
		map[string]string{"pod": pod.ID, "node": pod.NodeID}))

	m.logger.Info().Str("pod_id", pod.ID).Str("node_id", pod.NodeID).Msg("Pod created")
	return nil
}

// DeletePod removes a pod record
func (m *Manager) DeletePod(id string) error {
	if err := m.store.DeletePod(id); err != nil {
		return err
	}
	m.broker.Publish(events.NewEvent(events.EventPodDeleted,
		fmt.Sprintf("Pod %s deleted", id),
		map[string]string{"pod": id}))
	return nil
}

// CreateService validates the service spec, persists it, and creates its
// replica pods. Each pod inherits the service's mounts unchanged.
func (m *Manager) CreateService(service *types.Service) (*types.Service, error) {
	if err := validateMounts(service.Mounts); err != nil {
		return nil, err
	}
	if service.Replicas < 1 {
		service.Replicas = 1
	}

	now := time.Now().UTC()
	if service.ID == "" {
		service.ID = uuid.New().String()
	}
	service.CreatedAt = now
	service.UpdatedAt = now

	if err := m.store.SaveService(service); err != nil {
		return nil, fmt.Errorf("failed to save service: %w", err)
	}

	for i := 0; i < service.Replicas; i++ {
		pod := &types.Pod{
			Name:      fmt.Sprintf("%s-%d", service.Name, i),
			ServiceID: service.ID,
			NodeID:    service.NodeID,
			Mounts:    service.Mounts,
		}
		if err := m.CreatePod(pod); err != nil {
			return nil, fmt.Errorf("failed to create pod for service %s: %w", service.Name, err)
		}
	}

	m.broker.Publish(events.NewEvent(events.EventServiceCreated,
		fmt.Sprintf("Service %s created with %d replicas", service.Name, service.Replicas),
		map[string]string{"service": service.ID, "node": service.NodeID}))

	m.logger.Info().
		Str("service_id", service.ID).
		Int("replicas", service.Replicas).
		Msg("Service created")
	return service, nil
}

// DeleteService removes a service and all of its pods
func (m *Manager) DeleteService(id string) error {
	service, err := m.store.GetService(id)
	if err != nil {
		return err
	}

	pods, err := m.store.ListPodsByNode(service.NodeID)
	if err != nil {
		return err
	}
	for _, pod := range pods {
		if pod.ServiceID != id {
			continue
		}
		if err := m.DeletePod(pod.ID); err != nil {
			return err
		}
	}

	if err := m.store.DeleteService(id); err != nil {
		return err
	}
	m.broker.Publish(events.NewEvent(events.EventServiceDeleted,
		fmt.Sprintf("Service %s deleted", service.Name),
		map[string]string{"service": id}))
	return nil
}

// validateMounts rejects specifications that bind two volumes to the
// same mount path.
func validateMounts(mounts []*types.VolumeMount) error {
	seen := make(map[string]string, len(mounts))
	for _, mount := range mounts {
		if mount.Name == "" {
			return fmt.Errorf("volume mount requires a volume name")
		}
		if mount.MountPath == "" {
			return fmt.Errorf("volume mount %s requires a mount path", mount.Name)
		}
		if prev, ok := seen[mount.MountPath]; ok {
			return fmt.Errorf("mount path %s is used by both %s and %s", mount.MountPath, prev, mount.Name)
		}
		seen[mount.MountPath] = mount.Name
	}
	return nil
}

// Remote retrieval

// DownloadVolume requests the contents of a node-local volume and waits
// for the node's reply. The registry lookup is advisory: an unregistered
// name is logged and the request is sent anyway, because the node's disk
// is the source of truth for what exists.
func (m *Manager) DownloadVolume(ctx context.Context, nodeID, volumeName string) ([]types.VolumeFileEntry, error) {
	if _, err := m.store.GetVolumeByNameAndNode(volumeName, nodeID); err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			return nil, err
		}
		m.logger.Warn().
			Str("volume", volumeName).
			Str("node_id", nodeID).
			Msg("Volume is not registered, requesting from node anyway")
	}

	correlationID := uuid.New().String()
	env, err := retrieval.NewEnvelope(retrieval.MsgVolumeDownload, correlationID,
		retrieval.DownloadRequest{VolumeName: volumeName})
	if err != nil {
		return nil, err
	}

	resultCh := m.downloads.Register(correlationID)

	if !m.directory.SendToNode(nodeID, env) {
		m.downloads.Cancel(correlationID)
		metrics.VolumeDownloads.WithLabelValues("unreachable").Inc()
		return nil, fmt.Errorf("failed to request volume %s from node %s: %w",
			volumeName, nodeID, retrieval.ErrUnreachable)
	}

	m.logger.Debug().
		Str("volume", volumeName).
		Str("node_id", nodeID).
		Str("correlation_id", correlationID).
		Msg("Volume download requested")

	select {
	case result := <-resultCh:
		if result.Err != nil {
			outcome := "error"
			if errors.Is(result.Err, retrieval.ErrTimeout) {
				outcome = "timeout"
			}
			metrics.VolumeDownloads.WithLabelValues(outcome).Inc()
			m.broker.Publish(events.NewEvent(events.EventVolumeDownloadFail,
				fmt.Sprintf("Volume %s download from node %s failed: %v", volumeName, nodeID, result.Err),
				map[string]string{"volume": volumeName, "node": nodeID}))
			return nil, result.Err
		}

		metrics.VolumeDownloads.WithLabelValues("success").Inc()
		m.broker.Publish(events.NewEvent(events.EventVolumeDownloaded,
			fmt.Sprintf("Volume %s downloaded from node %s (%d files)", volumeName, nodeID, len(result.Files)),
			map[string]string{"volume": volumeName, "node": nodeID}))
		return result.Files, nil

	case <-ctx.Done():
		m.downloads.Cancel(correlationID)
		return nil, ctx.Err()
	}
}

// HandleNodeEnvelope routes a message from an identified node. Messages
// that need the sender's identity (heartbeats) are handled here; the
// rest go through HandleEnvelope.
func (m *Manager) HandleNodeEnvelope(nodeID string, env retrieval.Envelope) {
	if env.Type == retrieval.MsgNodeHeartbeat {
		if err := m.Heartbeat(nodeID); err != nil {
			m.logger.Debug().Err(err).Str("node_id", nodeID).Msg("Heartbeat for unknown node")
		}
		return
	}
	m.HandleEnvelope(env)
}

// HandleEnvelope routes a node-to-control-plane message. Replies whose
// correlation id is unknown (late replies after a timeout, duplicates)
// are dropped.
func (m *Manager) HandleEnvelope(env retrieval.Envelope) {
	switch env.Type {
	case retrieval.MsgVolumeDownloadResponse:
		var payload retrieval.DownloadResponse
		if err := env.DecodePayload(&payload); err != nil {
			m.logger.Error().Err(err).Str("correlation_id", env.CorrelationID).Msg("Malformed download response")
			return
		}
		if !m.downloads.Resolve(env.CorrelationID, payload.Files) {
			m.logger.Debug().Str("correlation_id", env.CorrelationID).Msg("Dropping reply with no pending download")
		}

	case retrieval.MsgVolumeDownloadError:
		var payload retrieval.DownloadErrorPayload
		if err := env.DecodePayload(&payload); err != nil {
			m.logger.Error().Err(err).Str("correlation_id", env.CorrelationID).Msg("Malformed download error")
			return
		}
		remoteErr := &retrieval.RemoteError{VolumeName: payload.VolumeName, Message: payload.Error}
		if !m.downloads.Reject(env.CorrelationID, remoteErr) {
			m.logger.Debug().Str("correlation_id", env.CorrelationID).Msg("Dropping error reply with no pending download")
		}

	default:
		m.logger.Warn().Str("type", string(env.Type)).Msg("Unknown message type")
	}
}

// PendingDownloads returns the number of in-flight volume downloads
func (m *Manager) PendingDownloads() int {
	return m.downloads.PendingCount()
}

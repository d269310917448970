package agent

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/logstore"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/storage"
	"github.com/skiff-run/skiff/pkg/types"
)

const logsDir = "logs"

// Sender delivers envelopes from this node back to the control plane
type Sender interface {
	Send(env retrieval.Envelope) error
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(env retrieval.Envelope) error

func (f SenderFunc) Send(env retrieval.Envelope) error {
	return f(env)
}

// Config holds configuration for creating an Agent
type Config struct {
	NodeID  string
	DataDir string

	// Sandbox keeps all state in memory instead of the host filesystem
	Sandbox bool

	// LogConfig tunes the per-entity log pipelines
	LogConfig logstore.ManagerConfig
}

// Agent is the node-side runtime: it owns the node's data directory
// through a storage adapter, serves volume downloads, and manages
// per-entity log pipelines.
type Agent struct {
	nodeID  string
	adapter storage.Adapter
	volumes *Volumes
	sender  Sender
	logger  zerolog.Logger

	logMu  sync.Mutex
	logCfg logstore.ManagerConfig
	logs   map[string]*logstore.Manager
	closed bool
}

// NewAgent creates an agent rooted at the configured data directory.
// The sender abstracts the uplink to the control plane.
func NewAgent(cfg *Config, sender Sender) (*Agent, error) {
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("node id is required")
	}

	var adapter storage.Adapter
	if cfg.Sandbox {
		adapter = storage.NewSandboxAdapter()
	} else {
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data directory is required")
		}
		adapter = storage.NewNativeAdapter(cfg.DataDir)
	}
	if err := adapter.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &Agent{
		nodeID:  cfg.NodeID,
		adapter: adapter,
		volumes: NewVolumes(adapter),
		sender:  sender,
		logger:  log.WithNodeID(cfg.NodeID),
		logCfg:  cfg.LogConfig,
		logs:    make(map[string]*logstore.Manager),
	}, nil
}

// NodeID returns the agent's node identifier
func (a *Agent) NodeID() string {
	return a.nodeID
}

// Volumes exposes the node's volume store
func (a *Agent) Volumes() *Volumes {
	return a.volumes
}

// Storage exposes the node's storage adapter
func (a *Agent) Storage() storage.Adapter {
	return a.adapter
}

// Logs returns the log manager for one entity, creating it on first use.
// Managers are cached so every caller for the same entity shares one
// buffer and one rotator.
func (a *Agent) Logs(entityType types.EntityType, entityID string) (*logstore.Manager, error) {
	key := string(entityType) + "/" + entityID

	a.logMu.Lock()
	defer a.logMu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("agent is closed")
	}
	if mgr, ok := a.logs[key]; ok {
		return mgr, nil
	}

	mgr := logstore.NewManager(a.adapter, logsDir, entityType, entityID, a.logCfg)
	if err := mgr.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize log storage for %s: %w", key, err)
	}
	a.logs[key] = mgr
	return mgr, nil
}

// DestroyLogs tears down one entity's log pipeline, flushing anything
// buffered. The segments stay on disk.
func (a *Agent) DestroyLogs(entityType types.EntityType, entityID string) {
	key := string(entityType) + "/" + entityID

	a.logMu.Lock()
	mgr, ok := a.logs[key]
	delete(a.logs, key)
	a.logMu.Unlock()

	if ok {
		mgr.Destroy()
	}
}

// Close flushes and stops every log pipeline
func (a *Agent) Close() {
	a.logMu.Lock()
	managers := make([]*logstore.Manager, 0, len(a.logs))
	for _, mgr := range a.logs {
		managers = append(managers, mgr)
	}
	a.logs = make(map[string]*logstore.Manager)
	a.closed = true
	a.logMu.Unlock()

	for _, mgr := range managers {
		mgr.Destroy()
	}
}

// HandleMessage routes a control-plane envelope to its handler
func (a *Agent) HandleMessage(env retrieval.Envelope) {
	switch env.Type {
	case retrieval.MsgVolumeDownload:
		a.handleDownload(env)
	default:
		a.logger.Warn().Str("type", string(env.Type)).Msg("Unknown message type")
	}
}

// handleDownload enumerates the requested volume and replies with its
// files, or with an error envelope carrying the same correlation id.
func (a *Agent) handleDownload(env retrieval.Envelope) {
	var req retrieval.DownloadRequest
	if err := env.DecodePayload(&req); err != nil {
		a.logger.Error().Err(err).Str("correlation_id", env.CorrelationID).Msg("Malformed download request")
		a.replyError(env.CorrelationID, "", err)
		return
	}

	files, err := a.volumes.Files(req.VolumeName)
	if err != nil {
		a.logger.Warn().
			Err(err).
			Str("volume", req.VolumeName).
			Msg("Volume download failed")
		a.replyError(env.CorrelationID, req.VolumeName, err)
		return
	}

	reply, err := retrieval.NewEnvelope(retrieval.MsgVolumeDownloadResponse, env.CorrelationID,
		retrieval.DownloadResponse{VolumeName: req.VolumeName, Files: files})
	if err != nil {
		a.replyError(env.CorrelationID, req.VolumeName, err)
		return
	}

	if err := a.sender.Send(reply); err != nil {
		a.logger.Error().Err(err).Str("volume", req.VolumeName).Msg("Failed to send download response")
		return
	}

	a.logger.Debug().
		Str("volume", req.VolumeName).
		Int("files", len(files)).
		Msg("Volume download served")
}

func (a *Agent) replyError(correlationID, volumeName string, cause error) {
	reply, err := retrieval.NewEnvelope(retrieval.MsgVolumeDownloadError, correlationID,
		retrieval.DownloadErrorPayload{VolumeName: volumeName, Error: cause.Error()})
	if err != nil {
		a.logger.Error().Err(err).Msg("Failed to build error response")
		return
	}
	if err := a.sender.Send(reply); err != nil {
		a.logger.Error().Err(err).Msg("Failed to send error response")
	}
}

package types

import (
	"time"
)

// Node represents a remote execution node managed by the control plane
type Node struct {
	ID            string            `json:"id"`
	Hostname      string            `json:"hostname,omitempty"`
	Address       string            `json:"address,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
	Status        NodeStatus        `json:"status"`
	LastHeartbeat time.Time         `json:"lastHeartbeat"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// NodeStatus represents the current state of a node
type NodeStatus string

const (
	NodeStatusReady   NodeStatus = "ready"
	NodeStatusDown    NodeStatus = "down"
	NodeStatusUnknown NodeStatus = "unknown"
)

// Pod represents one running instance of a workload package on a node
type Pod struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	ServiceID string         `json:"serviceId,omitempty"`
	NodeID    string         `json:"nodeId"`
	State     PodState       `json:"state"`
	Mounts    []*VolumeMount `json:"mounts,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// PodState represents the lifecycle state of a pod
type PodState string

const (
	PodStatePending PodState = "pending"
	PodStateRunning PodState = "running"
	PodStateStopped PodState = "stopped"
	PodStateFailed  PodState = "failed"
)

// Service represents a user-defined workload that creates pod instances.
// A service's volume mounts propagate unchanged to every pod it creates.
type Service struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	NodeID    string            `json:"nodeId"`
	Replicas  int               `json:"replicas"`
	Mounts    []*VolumeMount    `json:"mounts,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Volume represents a named, node-local persistent directory.
// A volume name is only unique within its node, not globally.
type Volume struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NodeID    string    `json:"nodeId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VolumeMount attaches a volume to a pod or service specification.
// At most one mount per distinct MountPath within a single specification.
type VolumeMount struct {
	Name      string `json:"name"`      // Volume name (node-scoped)
	MountPath string `json:"mountPath"` // Absolute path inside the workload
}

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// LogEntry is one immutable log record produced by node or pod execution
type LogEntry struct {
	Timestamp string         `json:"timestamp"` // ISO-8601
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// NewLogEntry builds a log entry stamped with the current UTC time
func NewLogEntry(level LogLevel, message string, meta map[string]any) LogEntry {
	return LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   message,
		Meta:      meta,
	}
}

// EntityType scopes a log directory to the kind of entity that owns it
type EntityType string

const (
	EntityTypeNode EntityType = "node"
	EntityTypePod  EntityType = "pod"
)

// VolumeFileEntry is the wire representation of one file returned by a
// volume download: a path relative to the volume root and base64 bytes.
type VolumeFileEntry struct {
	Path string `json:"path"`
	Data string `json:"data"`
}

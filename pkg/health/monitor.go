package health

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/types"
)

const (
	// DefaultCheckInterval is how often the monitor scans for stale nodes
	DefaultCheckInterval = 15 * time.Second

	// DefaultStaleAfter is how long a node may go without a heartbeat
	// before it is marked down
	DefaultStaleAfter = 45 * time.Second
)

// NodeLister provides the nodes to watch. The control plane registry
// satisfies this.
type NodeLister interface {
	ListNodes() ([]*types.Node, error)
}

// DownMarker flags a node as no longer live
type DownMarker interface {
	MarkNodeDown(nodeID string) error
}

// Monitor periodically scans node heartbeats and marks stale nodes
// down. It is the liveness backstop for nodes whose connections died
// without a clean close.
type Monitor struct {
	nodes      NodeLister
	marker     DownMarker
	interval   time.Duration
	staleAfter time.Duration
	logger     zerolog.Logger
}

// NewMonitor creates a heartbeat monitor. Zero durations take the
// package defaults.
func NewMonitor(nodes NodeLister, marker DownMarker, interval, staleAfter time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Monitor{
		nodes:      nodes,
		marker:     marker,
		interval:   interval,
		staleAfter: staleAfter,
		logger:     log.WithComponent("health"),
	}
}

// Run scans until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-ctx.Done():
			return
		}
	}
}

// Check performs one scan, marking every ready node with a stale
// heartbeat as down.
func (m *Monitor) Check() {
	nodes, err := m.nodes.ListNodes()
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list nodes")
		return
	}

	cutoff := time.Now().Add(-m.staleAfter)
	for _, node := range nodes {
		if node.Status != types.NodeStatusReady {
			continue
		}
		if node.LastHeartbeat.After(cutoff) {
			continue
		}

		m.logger.Warn().
			Str("node_id", node.ID).
			Time("last_heartbeat", node.LastHeartbeat).
			Msg("Node heartbeat stale, marking down")
		if err := m.marker.MarkNodeDown(node.ID); err != nil {
			m.logger.Error().Err(err).Str("node_id", node.ID).Msg("Failed to mark node down")
		}
	}
}

package health

import (
	"testing"
	"time"

	"github.com/skiff-run/skiff/pkg/types"
)

type fakeCluster struct {
	nodes  []*types.Node
	marked []string
}

func (f *fakeCluster) ListNodes() ([]*types.Node, error) { return f.nodes, nil }

func (f *fakeCluster) MarkNodeDown(nodeID string) error {
	f.marked = append(f.marked, nodeID)
	return nil
}

func TestMonitor_MarksStaleNodesDown(t *testing.T) {
	now := time.Now()
	cluster := &fakeCluster{nodes: []*types.Node{
		{ID: "fresh", Status: types.NodeStatusReady, LastHeartbeat: now},
		{ID: "stale", Status: types.NodeStatusReady, LastHeartbeat: now.Add(-time.Minute)},
		{ID: "already-down", Status: types.NodeStatusDown, LastHeartbeat: now.Add(-time.Hour)},
	}}

	monitor := NewMonitor(cluster, cluster, 0, 45*time.Second)
	monitor.Check()

	if len(cluster.marked) != 1 || cluster.marked[0] != "stale" {
		t.Errorf("marked = %v, want [stale]", cluster.marked)
	}
}

func TestMonitor_Defaults(t *testing.T) {
	monitor := NewMonitor(&fakeCluster{}, &fakeCluster{}, 0, 0)
	if monitor.interval != DefaultCheckInterval {
		t.Errorf("interval = %s, want default", monitor.interval)
	}
	if monitor.staleAfter != DefaultStaleAfter {
		t.Errorf("staleAfter = %s, want default", monitor.staleAfter)
	}
}

package controlplane

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/skiff-run/skiff/pkg/agent"
	"github.com/skiff-run/skiff/pkg/registry"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/types"
)

func newTestManager(t *testing.T, directory retrieval.Directory) *Manager {
	t.Helper()
	m, err := NewManager(&Config{DataDir: t.TempDir(), DownloadTimeout: time.Second}, directory)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// attachAgent wires an in-memory node agent into the directory so the
// manager's envelopes reach it and its replies come back.
func attachAgent(t *testing.T, m *Manager, dir *retrieval.LocalDirectory, nodeID string) *agent.Agent {
	t.Helper()
	a, err := agent.NewAgent(&agent.Config{NodeID: nodeID, Sandbox: true},
		agent.SenderFunc(func(env retrieval.Envelope) error {
			m.HandleEnvelope(env)
			return nil
		}))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	t.Cleanup(a.Close)
	dir.Attach(nodeID, a.HandleMessage)
	return a
}

func TestManager_VolumeLifecycle(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	volume, err := m.CreateVolume("data", "n1")
	if err != nil {
		t.Fatalf("CreateVolume() error = %v", err)
	}
	if volume.ID == "" || volume.Name != "data" || volume.NodeID != "n1" {
		t.Errorf("volume = %+v", volume)
	}

	// duplicate name on the same node conflicts
	if _, err := m.CreateVolume("data", "n1"); !errors.Is(err, registry.ErrConflict) {
		t.Errorf("duplicate CreateVolume() error = %v, want ErrConflict", err)
	}
	// same name on another node is fine
	if _, err := m.CreateVolume("data", "n2"); err != nil {
		t.Errorf("CreateVolume() on another node error = %v", err)
	}

	volumes, err := m.ListVolumes("n1")
	if err != nil || len(volumes) != 1 {
		t.Fatalf("ListVolumes(n1) = %v, %v", volumes, err)
	}

	if err := m.DeleteVolume("data", "n1"); err != nil {
		t.Fatalf("DeleteVolume() error = %v", err)
	}
	if _, err := m.GetVolume("data", "n1"); !errors.Is(err, registry.ErrNotFound) {
		t.Errorf("GetVolume() after delete error = %v, want ErrNotFound", err)
	}
}

func TestManager_NodeLifecycle(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	node := &types.Node{ID: "n1", Address: "10.0.0.5:7420"}
	if err := m.RegisterNode(node); err != nil {
		t.Fatalf("RegisterNode() error = %v", err)
	}
	if node.Status != types.NodeStatusReady {
		t.Errorf("node status = %s, want ready", node.Status)
	}

	if err := m.Heartbeat("n1"); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	if err := m.MarkNodeDown("n1"); err != nil {
		t.Fatalf("MarkNodeDown() error = %v", err)
	}
	got, err := m.Store().GetNode("n1")
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if got.Status != types.NodeStatusDown {
		t.Errorf("node status = %s, want down", got.Status)
	}

	if err := m.RegisterNode(&types.Node{}); err == nil {
		t.Error("RegisterNode() without id succeeded, want error")
	}
}

func TestManager_CreatePodValidatesMounts(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	err := m.CreatePod(&types.Pod{
		Name:   "web-1",
		NodeID: "n1",
		Mounts: []*types.VolumeMount{
			{Name: "a", MountPath: "/data"},
			{Name: "b", MountPath: "/data"},
		},
	})
	if err == nil {
		t.Fatal("CreatePod() with duplicate mount path succeeded, want error")
	}

	pod := &types.Pod{
		Name:   "web-1",
		NodeID: "n1",
		Mounts: []*types.VolumeMount{
			{Name: "a", MountPath: "/data"},
			{Name: "b", MountPath: "/cache"},
		},
	}
	if err := m.CreatePod(pod); err != nil {
		t.Fatalf("CreatePod() error = %v", err)
	}
	if pod.ID == "" || pod.State != types.PodStatePending {
		t.Errorf("pod = %+v", pod)
	}
}

func TestManager_ServiceMountsPropagate(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	mounts := []*types.VolumeMount{{Name: "data", MountPath: "/var/data"}}
	service, err := m.CreateService(&types.Service{
		Name:     "web",
		NodeID:   "n1",
		Replicas: 3,
		Mounts:   mounts,
	})
	if err != nil {
		t.Fatalf("CreateService() error = %v", err)
	}

	pods, err := m.Store().ListPodsByNode("n1")
	if err != nil {
		t.Fatalf("ListPodsByNode() error = %v", err)
	}
	if len(pods) != 3 {
		t.Fatalf("pod count = %d, want 3", len(pods))
	}
	for _, pod := range pods {
		if pod.ServiceID != service.ID {
			t.Errorf("pod %s service id = %s", pod.Name, pod.ServiceID)
		}
		if len(pod.Mounts) != 1 || pod.Mounts[0].MountPath != "/var/data" {
			t.Errorf("pod %s mounts = %v, want the service mounts", pod.Name, pod.Mounts)
		}
	}

	if err := m.DeleteService(service.ID); err != nil {
		t.Fatalf("DeleteService() error = %v", err)
	}
	pods, _ = m.Store().ListPodsByNode("n1")
	if len(pods) != 0 {
		t.Errorf("pods remain after DeleteService: %v", pods)
	}
}

func TestManager_DownloadVolume(t *testing.T) {
	dir := retrieval.NewLocalDirectory()
	m := newTestManager(t, dir)
	a := attachAgent(t, m, dir, "n1")

	// 42 bytes of content under a nested path
	content := bytes.Repeat([]byte("x"), 42)
	if err := a.Volumes().Ensure("shared-log"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := a.Storage().WriteFile("volumes/shared-log/app/logs/shared.log", content); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := m.CreateVolume("shared-log", "n1"); err != nil {
		t.Fatalf("CreateVolume() error = %v", err)
	}

	files, err := m.DownloadVolume(context.Background(), "n1", "shared-log")
	if err != nil {
		t.Fatalf("DownloadVolume() error = %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("file count = %d, want 1", len(files))
	}
	if files[0].Path != "app/logs/shared.log" {
		t.Errorf("file path = %s", files[0].Path)
	}
	decoded, err := base64.StdEncoding.DecodeString(files[0].Data)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if !bytes.Equal(decoded, content) {
		t.Errorf("downloaded %d bytes, want the original 42", len(decoded))
	}

	if m.PendingDownloads() != 0 {
		t.Errorf("PendingDownloads() = %d, want 0", m.PendingDownloads())
	}
}

func TestManager_DownloadUnregisteredVolume(t *testing.T) {
	dir := retrieval.NewLocalDirectory()
	m := newTestManager(t, dir)
	a := attachAgent(t, m, dir, "n1")

	// volume exists on disk but was never registered; the lookup is
	// advisory, so the download still succeeds
	if err := a.Volumes().Ensure("scratch"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := a.Storage().WriteFile("volumes/scratch/f", []byte("ok")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	files, err := m.DownloadVolume(context.Background(), "n1", "scratch")
	if err != nil {
		t.Fatalf("DownloadVolume() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("file count = %d, want 1", len(files))
	}
}

func TestManager_DownloadMissingVolumeFails(t *testing.T) {
	dir := retrieval.NewLocalDirectory()
	m := newTestManager(t, dir)
	attachAgent(t, m, dir, "n1")

	_, err := m.DownloadVolume(context.Background(), "n1", "ghost")
	var remoteErr *retrieval.RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("DownloadVolume() error = %v, want RemoteError", err)
	}
	if remoteErr.VolumeName != "ghost" {
		t.Errorf("remote error volume = %s", remoteErr.VolumeName)
	}
}

func TestManager_DownloadUnreachableNode(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	_, err := m.DownloadVolume(context.Background(), "offline-node", "data")
	if !errors.Is(err, retrieval.ErrUnreachable) {
		t.Fatalf("DownloadVolume() error = %v, want ErrUnreachable", err)
	}
	// the failed request leaves no pending entry behind
	if m.PendingDownloads() != 0 {
		t.Errorf("PendingDownloads() = %d, want 0", m.PendingDownloads())
	}
}

func TestManager_DownloadContextCancelled(t *testing.T) {
	dir := retrieval.NewLocalDirectory()
	m := newTestManager(t, dir)

	// a node that receives the request but never answers
	dir.Attach("n1", func(retrieval.Envelope) {})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := m.DownloadVolume(ctx, "n1", "data")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("DownloadVolume() error = %v, want context.Canceled", err)
	}
	if m.PendingDownloads() != 0 {
		t.Errorf("PendingDownloads() = %d, want 0", m.PendingDownloads())
	}
}

func TestManager_HandleNodeEnvelopeHeartbeat(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	if err := m.RegisterNode(&types.Node{ID: "n1"}); err != nil {
		t.Fatalf("RegisterNode() error = %v", err)
	}
	if err := m.MarkNodeDown("n1"); err != nil {
		t.Fatalf("MarkNodeDown() error = %v", err)
	}

	env, err := retrieval.NewEnvelope(retrieval.MsgNodeHeartbeat, "", nil)
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	m.HandleNodeEnvelope("n1", env)

	node, err := m.Store().GetNode("n1")
	if err != nil {
		t.Fatalf("GetNode() error = %v", err)
	}
	if node.Status != types.NodeStatusReady {
		t.Errorf("node status = %s, want ready after heartbeat", node.Status)
	}
}

func TestManager_HandleEnvelopeUnknownCorrelation(t *testing.T) {
	m := newTestManager(t, retrieval.NewLocalDirectory())

	// a late reply for a download nobody is waiting on is dropped
	env, err := retrieval.NewEnvelope(retrieval.MsgVolumeDownloadResponse, "stale",
		retrieval.DownloadResponse{VolumeName: "data"})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	m.HandleEnvelope(env)
}

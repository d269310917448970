package agent

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/types"
)

func newTestAgent(t *testing.T, sender Sender) *Agent {
	t.Helper()
	a, err := NewAgent(&Config{NodeID: "n1", Sandbox: true}, sender)
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestVolumes_EnsureRemove(t *testing.T) {
	a := newTestAgent(t, SenderFunc(func(retrieval.Envelope) error { return nil }))
	vols := a.Volumes()

	if err := vols.Ensure("data"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	// idempotent
	if err := vols.Ensure("data"); err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}

	if !vols.Exists("data") {
		t.Fatal("Exists() = false, want true")
	}

	names, err := vols.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(names) != 1 || names[0] != "data" {
		t.Errorf("List() = %v, want [data]", names)
	}

	if err := vols.Remove("data"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if vols.Exists("data") {
		t.Error("volume still exists after Remove()")
	}
	// removing a missing volume is a no-op
	if err := vols.Remove("data"); err != nil {
		t.Errorf("Remove() of missing volume error = %v", err)
	}
}

func TestVolumes_RejectsBadNames(t *testing.T) {
	a := newTestAgent(t, SenderFunc(func(retrieval.Envelope) error { return nil }))
	vols := a.Volumes()

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		if err := vols.Ensure(name); err == nil {
			t.Errorf("Ensure(%q) succeeded, want error", name)
		}
	}
}

func TestVolumes_FilesRecursive(t *testing.T) {
	a := newTestAgent(t, SenderFunc(func(retrieval.Envelope) error { return nil }))
	vols := a.Volumes()
	adapter := a.Storage()

	if err := vols.Ensure("shared-log"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := adapter.WriteFile("volumes/shared-log/app/logs/shared.log", []byte("hello from the node")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := adapter.WriteFile("volumes/shared-log/config.yaml", []byte("replicas: 2\n")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	files, err := vols.Files("shared-log")
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Files() returned %d entries, want 2", len(files))
	}

	byPath := make(map[string]string)
	for _, f := range files {
		byPath[f.Path] = f.Data
	}
	decoded, err := base64.StdEncoding.DecodeString(byPath["app/logs/shared.log"])
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if string(decoded) != "hello from the node" {
		t.Errorf("file content = %q", decoded)
	}
	if _, ok := byPath["config.yaml"]; !ok {
		t.Errorf("top-level file missing, got paths %v", byPath)
	}
}

func TestVolumes_FilesMissingVolume(t *testing.T) {
	a := newTestAgent(t, SenderFunc(func(retrieval.Envelope) error { return nil }))

	if _, err := a.Volumes().Files("ghost"); err == nil {
		t.Error("Files() of missing volume succeeded, want error")
	}
}

func TestAgent_HandleDownload(t *testing.T) {
	replies := make(chan retrieval.Envelope, 1)
	a := newTestAgent(t, SenderFunc(func(env retrieval.Envelope) error {
		replies <- env
		return nil
	}))

	if err := a.Volumes().Ensure("data"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := a.Storage().WriteFile("volumes/data/a.txt", []byte("abc")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	req, err := retrieval.NewEnvelope(retrieval.MsgVolumeDownload, "c1",
		retrieval.DownloadRequest{VolumeName: "data"})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	a.HandleMessage(req)

	select {
	case reply := <-replies:
		if reply.Type != retrieval.MsgVolumeDownloadResponse {
			t.Fatalf("reply type = %s, want %s", reply.Type, retrieval.MsgVolumeDownloadResponse)
		}
		if reply.CorrelationID != "c1" {
			t.Errorf("correlation id = %s, want c1", reply.CorrelationID)
		}
		var payload retrieval.DownloadResponse
		if err := reply.DecodePayload(&payload); err != nil {
			t.Fatalf("DecodePayload() error = %v", err)
		}
		if len(payload.Files) != 1 || payload.Files[0].Path != "a.txt" {
			t.Errorf("payload files = %v", payload.Files)
		}
	case <-time.After(time.Second):
		t.Fatal("no reply sent")
	}
}

func TestAgent_HandleDownloadMissingVolume(t *testing.T) {
	replies := make(chan retrieval.Envelope, 1)
	a := newTestAgent(t, SenderFunc(func(env retrieval.Envelope) error {
		replies <- env
		return nil
	}))

	req, err := retrieval.NewEnvelope(retrieval.MsgVolumeDownload, "c2",
		retrieval.DownloadRequest{VolumeName: "ghost"})
	if err != nil {
		t.Fatalf("NewEnvelope() error = %v", err)
	}
	a.HandleMessage(req)

	select {
	case reply := <-replies:
		if reply.Type != retrieval.MsgVolumeDownloadError {
			t.Fatalf("reply type = %s, want %s", reply.Type, retrieval.MsgVolumeDownloadError)
		}
		if reply.CorrelationID != "c2" {
			t.Errorf("correlation id = %s, want c2", reply.CorrelationID)
		}
		var payload retrieval.DownloadErrorPayload
		if err := reply.DecodePayload(&payload); err != nil {
			t.Fatalf("DecodePayload() error = %v", err)
		}
		if payload.VolumeName != "ghost" || payload.Error == "" {
			t.Errorf("error payload = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no error reply sent")
	}
}

func TestAgent_LogsCached(t *testing.T) {
	a := newTestAgent(t, SenderFunc(func(retrieval.Envelope) error { return nil }))

	first, err := a.Logs(types.EntityTypePod, "web-1")
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	second, err := a.Logs(types.EntityTypePod, "web-1")
	if err != nil {
		t.Fatalf("second Logs() error = %v", err)
	}
	if first != second {
		t.Error("Logs() returned a new manager for the same entity")
	}

	other, err := a.Logs(types.EntityTypeNode, "n1")
	if err != nil {
		t.Fatalf("Logs() for node error = %v", err)
	}
	if other == first {
		t.Error("distinct entities share one manager")
	}

	first.Log(types.NewLogEntry(types.LogLevelInfo, "started", nil))
	entries, err := first.ReadLogs(0)
	if err != nil {
		t.Fatalf("ReadLogs() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Message != "started" {
		t.Errorf("ReadLogs() = %v", entries)
	}
}

func TestAgent_NativeDataDir(t *testing.T) {
	a, err := NewAgent(&Config{NodeID: "n1", DataDir: t.TempDir()}, SenderFunc(func(retrieval.Envelope) error { return nil }))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	defer a.Close()

	if err := a.Volumes().Ensure("data"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := a.Storage().WriteFile("volumes/data/f", []byte("x")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	files, err := a.Volumes().Files("data")
	if err != nil || len(files) != 1 {
		t.Fatalf("Files() = %v, %v", files, err)
	}
}

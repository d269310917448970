package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skiff-run/skiff/pkg/agent"
	"github.com/skiff-run/skiff/pkg/controlplane"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/types"
)

type testCluster struct {
	mgr   *controlplane.Manager
	agent *agent.Agent
	srv   *httptest.Server
}

func newTestCluster(t *testing.T) *testCluster {
	t.Helper()

	dir := retrieval.NewLocalDirectory()
	mgr, err := controlplane.NewManager(&controlplane.Config{
		DataDir:         t.TempDir(),
		DownloadTimeout: time.Second,
	}, dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { mgr.Close() })

	a, err := agent.NewAgent(&agent.Config{NodeID: "n1", Sandbox: true},
		agent.SenderFunc(func(env retrieval.Envelope) error {
			mgr.HandleEnvelope(env)
			return nil
		}))
	if err != nil {
		t.Fatalf("NewAgent() error = %v", err)
	}
	t.Cleanup(a.Close)
	dir.Attach("n1", a.HandleMessage)

	mux := http.NewServeMux()
	NewServer(mgr).Routes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testCluster{mgr: mgr, agent: a, srv: srv}
}

func (c *testCluster) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	resp, err := http.Post(c.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	return resp
}

func TestServer_VolumeLifecycle(t *testing.T) {
	c := newTestCluster(t)

	resp := c.postJSON(t, "/api/v1/volumes", map[string]string{"name": "data", "nodeId": "n1"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}
	var volume types.Volume
	if err := json.NewDecoder(resp.Body).Decode(&volume); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if volume.ID == "" || volume.Name != "data" {
		t.Errorf("volume = %+v", volume)
	}

	// duplicate conflicts
	resp = c.postJSON(t, "/api/v1/volumes", map[string]string{"name": "data", "nodeId": "n1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create status = %d, want 409", resp.StatusCode)
	}

	// list
	listResp, err := http.Get(c.srv.URL + "/api/v1/volumes?node=n1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer listResp.Body.Close()
	var volumes []*types.Volume
	if err := json.NewDecoder(listResp.Body).Decode(&volumes); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(volumes) != 1 {
		t.Errorf("volume count = %d, want 1", len(volumes))
	}

	// delete
	req, _ := http.NewRequest(http.MethodDelete, c.srv.URL+"/api/v1/volumes/data?node=n1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", delResp.StatusCode)
	}

	// deleting again is 404
	delResp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE error = %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", delResp.StatusCode)
	}
}

func TestServer_DownloadVolume(t *testing.T) {
	c := newTestCluster(t)

	if err := c.agent.Volumes().Ensure("data"); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if err := c.agent.Storage().WriteFile("volumes/data/report.txt", []byte("quarterly numbers")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	resp, err := http.Get(c.srv.URL + "/api/v1/volumes/data/download?node=n1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", resp.StatusCode)
	}

	var payload downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(payload.Files) != 1 || payload.Files[0].Path != "report.txt" {
		t.Fatalf("files = %v", payload.Files)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload.Files[0].Data)
	if err != nil || string(decoded) != "quarterly numbers" {
		t.Errorf("decoded = %q, %v", decoded, err)
	}
}

func TestServer_DownloadUnreachableNode(t *testing.T) {
	c := newTestCluster(t)

	resp, err := http.Get(c.srv.URL + "/api/v1/volumes/data/download?node=ghost")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestServer_DownloadMissingVolume(t *testing.T) {
	c := newTestCluster(t)

	resp, err := http.Get(c.srv.URL + "/api/v1/volumes/ghost/download?node=n1")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	// the node answers with an error reply
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestServer_CreateService(t *testing.T) {
	c := newTestCluster(t)

	resp := c.postJSON(t, "/api/v1/services", types.Service{
		Name:     "web",
		NodeID:   "n1",
		Replicas: 2,
		Mounts:   []*types.VolumeMount{{Name: "data", MountPath: "/var/data"}},
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create service status = %d, want 201", resp.StatusCode)
	}

	var created types.Service
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	pods, err := c.mgr.Store().ListPodsByNode("n1")
	if err != nil || len(pods) != 2 {
		t.Errorf("pods = %v, %v, want 2", pods, err)
	}

	// missing fields rejected
	resp = c.postJSON(t, "/api/v1/services", types.Service{Name: "web"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid service status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_Healthz(t *testing.T) {
	c := newTestCluster(t)

	resp, err := http.Get(c.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

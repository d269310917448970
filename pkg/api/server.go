package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/skiff-run/skiff/pkg/controlplane"
	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/registry"
	"github.com/skiff-run/skiff/pkg/retrieval"
	"github.com/skiff-run/skiff/pkg/types"
)

// Server exposes the control plane over HTTP JSON
type Server struct {
	mgr    *controlplane.Manager
	logger zerolog.Logger
}

// NewServer creates the API server for a control plane manager
func NewServer(mgr *controlplane.Manager) *Server {
	return &Server{
		mgr:    mgr,
		logger: log.WithComponent("api"),
	}
}

// Routes registers the API endpoints on a mux
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/v1/nodes", s.handleListNodes)
	mux.HandleFunc("GET /api/v1/volumes", s.handleListVolumes)
	mux.HandleFunc("POST /api/v1/volumes", s.handleCreateVolume)
	mux.HandleFunc("DELETE /api/v1/volumes/{name}", s.handleDeleteVolume)
	mux.HandleFunc("GET /api/v1/volumes/{name}/download", s.handleDownloadVolume)
	mux.HandleFunc("POST /api/v1/services", s.handleCreateService)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var remoteErr *retrieval.RemoteError
	switch {
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, retrieval.ErrUnreachable):
		status = http.StatusBadGateway
	case errors.Is(err, retrieval.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.As(err, &remoteErr):
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.mgr.ListNodes()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if nodes == nil {
		nodes = []*types.Node{}
	}
	s.writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleListVolumes(w http.ResponseWriter, r *http.Request) {
	volumes, err := s.mgr.ListVolumes(r.URL.Query().Get("node"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if volumes == nil {
		volumes = []*types.Volume{}
	}
	s.writeJSON(w, http.StatusOK, volumes)
}

type createVolumeRequest struct {
	Name   string `json:"name"`
	NodeID string `json:"nodeId"`
}

func (s *Server) handleCreateVolume(w http.ResponseWriter, r *http.Request) {
	var req createVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Name == "" || req.NodeID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name and nodeId are required"})
		return
	}

	volume, err := s.mgr.CreateVolume(req.Name, req.NodeID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, volume)
}

func (s *Server) handleDeleteVolume(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	nodeID := r.URL.Query().Get("node")
	if nodeID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "node query parameter is required"})
		return
	}

	if err := s.mgr.DeleteVolume(name, nodeID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type downloadResponse struct {
	VolumeName string                  `json:"volumeName"`
	NodeID     string                  `json:"nodeId"`
	Files      []types.VolumeFileEntry `json:"files"`
}

func (s *Server) handleDownloadVolume(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	nodeID := r.URL.Query().Get("node")
	if nodeID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "node query parameter is required"})
		return
	}

	files, err := s.mgr.DownloadVolume(r.Context(), nodeID, name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, downloadResponse{
		VolumeName: name,
		NodeID:     nodeID,
		Files:      files,
	})
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var service types.Service
	if err := json.NewDecoder(r.Body).Decode(&service); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if service.Name == "" || service.NodeID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name and nodeId are required"})
		return
	}

	created, err := s.mgr.CreateService(&service)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

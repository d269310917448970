package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/metrics"
	"github.com/skiff-run/skiff/pkg/retrieval"
)

const (
	// NodeIDHeader carries the node's identity during the websocket handshake
	NodeIDHeader = "X-Skiff-Node-ID"

	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	pongTimeout  = 75 * time.Second
)

// MessageHandler receives every envelope a node sends to the control plane
type MessageHandler func(nodeID string, env retrieval.Envelope)

// ConnectionHook observes node connect and disconnect transitions
type ConnectionHook func(nodeID string)

// Hub accepts node websocket connections on the control-plane side and
// implements retrieval.Directory over them. One connection per node id;
// a reconnect replaces the previous connection.
type Hub struct {
	handler      MessageHandler
	onConnect    ConnectionHook
	onDisconnect ConnectionHook
	upgrader     websocket.Upgrader
	logger       zerolog.Logger

	mu    sync.RWMutex
	conns map[string]*nodeConn
}

// nodeConn serializes writes to one node's connection
type nodeConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *nodeConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func (c *nodeConn) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// NewHub creates a hub that forwards node envelopes to handler. The
// hooks may be nil.
func NewHub(handler MessageHandler, onConnect, onDisconnect ConnectionHook) *Hub {
	return &Hub{
		handler:      handler,
		onConnect:    onConnect,
		onDisconnect: onDisconnect,
		upgrader:     websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:       log.WithComponent("transport"),
		conns:        make(map[string]*nodeConn),
	}
}

// ServeHTTP upgrades a node connection and runs its read loop
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	nodeID := r.Header.Get(NodeIDHeader)
	if nodeID == "" {
		http.Error(w, "missing node id", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Str("node_id", nodeID).Msg("Websocket upgrade failed")
		return
	}

	nc := &nodeConn{conn: conn}
	h.register(nodeID, nc)
	defer h.deregister(nodeID, nc)

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	stopPing := make(chan struct{})
	defer close(stopPing)
	go h.pingLoop(nodeID, nc, stopPing)

	for {
		var env retrieval.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn().Err(err).Str("node_id", nodeID).Msg("Node connection lost")
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		h.handler(nodeID, env)
	}
}

func (h *Hub) pingLoop(nodeID string, nc *nodeConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := nc.ping(); err != nil {
				h.logger.Debug().Err(err).Str("node_id", nodeID).Msg("Ping failed")
				nc.conn.Close()
				return
			}
		case <-stop:
			return
		}
	}
}

func (h *Hub) register(nodeID string, nc *nodeConn) {
	h.mu.Lock()
	prev, replaced := h.conns[nodeID]
	h.conns[nodeID] = nc
	h.mu.Unlock()

	if replaced {
		prev.conn.Close()
	} else {
		metrics.ConnectedNodes.Inc()
	}

	h.logger.Info().Str("node_id", nodeID).Msg("Node connected")
	if h.onConnect != nil {
		h.onConnect(nodeID)
	}
}

func (h *Hub) deregister(nodeID string, nc *nodeConn) {
	h.mu.Lock()
	current, ok := h.conns[nodeID]
	// a reconnect may already have replaced this connection
	if ok && current == nc {
		delete(h.conns, nodeID)
	} else {
		ok = false
	}
	h.mu.Unlock()

	nc.conn.Close()
	if !ok {
		return
	}

	metrics.ConnectedNodes.Dec()
	h.logger.Info().Str("node_id", nodeID).Msg("Node disconnected")
	if h.onDisconnect != nil {
		h.onDisconnect(nodeID)
	}
}

// SendToNode delivers an envelope to a connected node. Returns false
// when the node has no live connection or the write fails, so callers
// can fail fast instead of waiting out a timeout.
func (h *Hub) SendToNode(nodeID string, env retrieval.Envelope) bool {
	h.mu.RLock()
	nc, ok := h.conns[nodeID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	if err := nc.writeJSON(env); err != nil {
		h.logger.Warn().Err(err).Str("node_id", nodeID).Msg("Failed to send to node")
		nc.conn.Close()
		return false
	}
	return true
}

// ConnectedNodes returns the ids of all currently connected nodes
func (h *Hub) ConnectedNodes() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

// Close drops every node connection
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, nc := range h.conns {
		if err := nc.conn.Close(); err != nil {
			h.logger.Debug().Err(err).Str("node_id", id).Msg("Close failed")
		}
	}
	h.conns = make(map[string]*nodeConn)
	return nil
}

var _ retrieval.Directory = (*Hub)(nil)

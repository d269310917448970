package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/retrieval"
)

// ClientConfig holds configuration for a node's uplink
type ClientConfig struct {
	// ServerURL is the control plane websocket endpoint, e.g.
	// ws://10.0.0.1:7420/connect
	ServerURL string
	NodeID    string
}

// Client is the node side of the websocket uplink. It implements
// agent.Sender for outbound envelopes and pumps inbound envelopes to a
// handler.
type Client struct {
	cfg    ClientConfig
	logger zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewClient creates an unconnected client
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:    cfg,
		logger: log.WithComponent("transport").With().Str("node_id", cfg.NodeID).Logger(),
	}
}

// Connect dials the control plane, identifying as the configured node
func (c *Client) Connect(ctx context.Context) error {
	header := http.Header{}
	header.Set(NodeIDHeader, c.cfg.NodeID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.ServerURL, header)
	if err != nil {
		return fmt.Errorf("failed to connect to control plane: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info().Str("server", c.cfg.ServerURL).Msg("Connected to control plane")
	return nil
}

// Send delivers an envelope to the control plane
func (c *Client) Send(env retrieval.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send envelope: %w", err)
	}
	return nil
}

// Run reads envelopes until the connection drops or ctx is cancelled,
// passing each one to handler.
func (c *Client) Run(ctx context.Context, handler func(retrieval.Envelope)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var env retrieval.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("connection lost: %w", err)
		}
		handler(env)
	}
}

// Close shuts the connection down
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	// best effort close handshake
	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

package retrieval

import (
	"sync"
)

// Directory is the capability the core consumes from the connection layer:
// address a specific connected node and deliver one message. False means
// the node is not currently reachable; reconnection and heartbeats are the
// transport's business.
type Directory interface {
	SendToNode(nodeID string, env Envelope) bool
}

// LocalDirectory delivers messages to in-process handlers. It backs the
// single-binary development mode and the protocol tests; the production
// carrier lives in pkg/transport.
type LocalDirectory struct {
	mu       sync.RWMutex
	handlers map[string]func(Envelope)
}

// NewLocalDirectory creates an empty in-process directory
func NewLocalDirectory() *LocalDirectory {
	return &LocalDirectory{handlers: make(map[string]func(Envelope))}
}

// Attach registers the message handler for a node id
func (d *LocalDirectory) Attach(nodeID string, handler func(Envelope)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[nodeID] = handler
}

// Detach removes a node's handler
func (d *LocalDirectory) Detach(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, nodeID)
}

// SendToNode delivers asynchronously, the way a real duplex channel would
func (d *LocalDirectory) SendToNode(nodeID string, env Envelope) bool {
	d.mu.RLock()
	handler, ok := d.handlers[nodeID]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	go handler(env)
	return true
}

var _ Directory = (*LocalDirectory)(nil)

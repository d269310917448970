/*
Package transport carries envelopes between the control plane and nodes
over websockets.

Each node holds one long-lived connection to the control plane. All
messages are JSON envelopes (see the retrieval package); the transport
itself is a dumb pipe with liveness pings and knows nothing about volume
downloads or any other protocol built on top.

# Hub (control-plane side)

The Hub is an http.Handler: mount it on the control plane's mux and
nodes connect to it, identifying with the X-Skiff-Node-ID header during
the handshake. The Hub implements retrieval.Directory, so the control
plane manager sends to nodes without knowing about websockets:

	hub := transport.NewHub(manager.HandleNodeEnvelope, onConnect, onDisconnect)
	mux.Handle("/connect", hub)

SendToNode returns false when the node has no live connection or the
write fails. A node reconnecting replaces its previous connection.

# Client (node side)

	client := transport.NewClient(transport.ClientConfig{
		ServerURL: "ws://controlplane:7420/connect",
		NodeID:    nodeID,
	})
	if err := client.Connect(ctx); err != nil { ... }
	go client.Run(ctx, agent.HandleMessage)

The Client implements agent.Sender, so the agent replies to downloads
through it without knowing about websockets either.
*/
package transport

/*
Package retrieval implements the correlation-based request/response
protocol the control plane uses to pull volume contents out of a remote
node over its long-lived duplex connection.

# Protocol

Each outbound request carries a fresh correlation id and registers a
pending entry; the node's eventual reply (or an error, or the 60 s
timeout) carries the same id and produces the single terminal result:

	Pending ──► Resolved   (volume:download:response)
	        ──► Rejected   (volume:download:error)
	        ──► TimedOut   (no reply within the bound)

Only the first terminal transition for a given id has effect; the entry
and its timer are removed on that transition, so nothing leaks. A request
to a node that is not connected fails fast with ErrUnreachable and leaves
no pending entry behind.

The Downloads registry is an explicit owned object, not ambient global
state: construct one per control-plane process and inject it into the
download path and the reply handler. Directory is the only capability the
protocol consumes from the connection layer.
*/
package retrieval

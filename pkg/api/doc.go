/*
Package api exposes the control plane over an HTTP JSON interface.

The server is a thin translation layer: it decodes requests, calls the
control plane manager, and maps domain errors onto status codes. It
holds no state of its own.

# Endpoints

	GET    /healthz
	GET    /api/v1/nodes
	GET    /api/v1/volumes?node=<id>
	POST   /api/v1/volumes                      {"name": ..., "nodeId": ...}
	DELETE /api/v1/volumes/{name}?node=<id>
	GET    /api/v1/volumes/{name}/download?node=<id>
	POST   /api/v1/services

# Error Mapping

	registry.ErrNotFound      404
	registry.ErrConflict      409
	retrieval.ErrUnreachable  502
	retrieval.RemoteError     502
	retrieval.ErrTimeout      504

The download endpoint blocks until the node replies or the download
times out; cancelling the HTTP request cancels the wait.
*/
package api

/*
Package health watches node liveness on the control plane.

Websocket disconnects mark nodes down immediately; the Monitor covers
the remaining case where a connection dies without a close frame and no
disconnect ever fires. It periodically lists registered nodes and marks
any ready node down whose last heartbeat is older than the staleness
bound.

	monitor := health.NewMonitor(mgr, mgr, 0, 0)
	go monitor.Run(ctx)

The monitor never deletes node records and never resurrects a node; a
reconnect or fresh heartbeat brings it back to ready through the
control plane.
*/
package health

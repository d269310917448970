/*
Package controlplane implements the Skiff control plane manager.

The manager is the cluster's single coordination point: it owns the
BoltDB-backed metadata registry, validates and persists workload
specifications, tracks in-flight volume downloads, and publishes cluster
events. Node-local state (volume bytes, log segments) never lives here;
the control plane holds names and routing facts and asks nodes for the
rest.

# Architecture

	┌──────────────────── CONTROL PLANE ───────────────────────┐
	│                                                           │
	│  ┌─────────────┐  ┌───────────────┐  ┌────────────────┐  │
	│  │  Registry   │  │   Downloads   │  │  Event Broker  │  │
	│  │  (BoltDB)   │  │ (pending map) │  │   (pub/sub)    │  │
	│  └─────────────┘  └───────┬───────┘  └────────────────┘  │
	│                           │                               │
	│                  ┌────────▼────────┐                      │
	│                  │    Directory    │                      │
	│                  │ (node transport)│                      │
	│                  └────────┬────────┘                      │
	└───────────────────────────┼──────────────────────────────┘
	                            │ envelopes
	                     ┌──────▼──────┐
	                     │    Nodes    │
	                     └─────────────┘

# Volume Downloads

DownloadVolume implements the request/reply protocol over the one-way
envelope transport:

 1. Look up the volume in the registry. A miss is advisory only; the
    request is still sent because the node's disk is authoritative.
 2. Register a pending download under a fresh correlation id.
 3. Send a volume:download envelope to the node. If the node is not
    connected the pending entry is cancelled and the call fails fast.
 4. Wait for the node's reply, the timeout, or context cancellation.

Replies are matched to waiters by correlation id in HandleEnvelope.
Only the first resolution counts; late or duplicate replies are dropped.

# Workloads

CreatePod and CreateService validate volume mounts (a specification may
bind at most one volume per mount path). A service's mounts propagate
unchanged to each replica pod it creates.
*/
package controlplane

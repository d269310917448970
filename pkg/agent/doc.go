/*
Package agent implements the Skiff node-side runtime.

The agent owns everything that lives on a node's disk: volume
directories, log segments, and the storage adapter they both sit on. It
answers control-plane requests over a one-way envelope uplink and never
initiates registry writes itself — the node's disk is the source of
truth for volume contents, the registry only holds names.

# Data Directory Layout

	<dataDir>/
	├── volumes/
	│   ├── postgres-data/      one directory per volume
	│   └── shared-log/
	└── logs/
	    ├── nodes/<nodeId>/     log-<timestamp>.jsonl segments
	    └── pods/<podId>/

The same layout exists on both storage backends. With Sandbox set, the
agent keeps the whole tree in memory, which is how the tests run and how
unprivileged deployments avoid touching the host filesystem.

# Volume Downloads

A volume:download envelope names a volume; the agent walks the volume
directory recursively, base64-encodes every file, and replies on the
same correlation id. A missing volume or a read failure produces a
volume:download:error reply instead. The agent always replies — the
control plane's timeout only covers lost transport, not slow nodes.

# Logs

Logs(entityType, entityID) lazily creates one log pipeline per entity
(buffer plus size- and age-rotated JSONL segments) and caches it, so
all writers for an entity share a single ordered write queue.
*/
package agent

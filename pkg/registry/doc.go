/*
Package registry provides the BoltDB-backed metadata store for Skiff's
control plane: durable records of nodes, pods, services, and node-scoped
volumes.

All values are serialized as JSON into per-type buckets; a dedicated
volume_names bucket indexes volumes by nodeID/name and enforces the one
registry invariant that matters: a volume name is unique within its node,
never globally.

The registry is advisory, not authoritative, for volume downloads. A node's
on-disk volume may exist without a registry row (created implicitly through
a mount) or vice versa; the remote node is the ground truth for what exists
on disk, so download callers treat ErrNotFound as a warning, not a failure.
*/
package registry

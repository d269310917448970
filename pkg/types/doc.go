/*
Package types defines the core data structures used throughout Skiff.

This package contains the domain model shared by the control plane and the
node agent: nodes, pods, services, volumes, volume mounts, log entries, and
the wire representation of downloaded volume files. All other packages build
on these types for persistence, messaging, and orchestration logic.

# Core Types

Cluster topology:
  - Node: a remote machine running the execution runtime
  - NodeStatus: ready, down, unknown

Workloads:
  - Service: user-defined workload that creates pod instances
  - Pod: one running instance of a workload package
  - VolumeMount: attachment of a named volume at a mount path

Storage:
  - Volume: named, node-local persistent directory; the (name, nodeId)
    pair is unique, the name alone is not
  - VolumeFileEntry: one downloaded file (relative path + base64 bytes)

Logging:
  - LogEntry: immutable record with ISO-8601 timestamp, level, message,
    and an open metadata map
  - EntityType: node or pod, scoping a log directory to its owner

All types serialize to JSON with camelCase field names matching the wire
and on-disk formats.
*/
package types

/*
Package logstore implements Skiff's workload log pipeline: buffering,
rotation, and retention of node and pod execution output on top of the
storage adapter.

# Architecture

	┌──────────────────── LOG PIPELINE ────────────────────────┐
	│                                                          │
	│  Log(entry)                                              │
	│     │                                                    │
	│     ▼                                                    │
	│  ┌─────────┐  timer / fatal / destroy   ┌─────────────┐  │
	│  │ Buffer  │ ───────── batch ─────────► │ writer queue│  │
	│  └─────────┘                            └──────┬──────┘  │
	│                                                │         │
	│                                                ▼         │
	│                                         ┌───────────┐    │
	│                                         │  Rotator  │    │
	│                                         │ segments, │    │
	│                                         │ retention │    │
	│                                         └─────┬─────┘    │
	│                                               │          │
	│                                               ▼          │
	│                                       storage.Adapter    │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

Entries accumulate in the Buffer and drain as ordered batches: every flush
interval, immediately when a fatal entry arrives, and one final time on
destroy. A background writer owns the Rotator and applies batches in
arrival order, so the logging caller never blocks on storage I/O. Segment
files are named log-<timestamp>.jsonl, one JSON entry per line; the active
segment rolls over on size or age, and the oldest segments are pruned past
the retention cap.

A Manager composes one Buffer and one Rotator for a single entity directory
(<basePath>/nodes/<id> or <basePath>/pods/<id>) and is that directory's
only writer for its lifetime.
*/
package logstore

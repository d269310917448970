/*
Package storage provides Skiff's portable storage abstraction: one contract,
two structurally different backends with identical file-system semantics.

Every path handed to an adapter is virtual: slash-delimited and scoped to
the adapter's configured root. Resolution normalizes "." segments (ignored)
and ".." segments (pop one level, clamped at the root), so no caller can
ever address anything outside the root.

# Architecture

	┌──────────────────── STORAGE ADAPTER ─────────────────────┐
	│                                                          │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Adapter (interface)           │          │
	│  │  Initialize / ReadFile / WriteFile /       │          │
	│  │  AppendFile / Mkdir / ReadDir / Stat /     │          │
	│  │  Rename / CopyFile / Remove* / Is* ...     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                    │
	│         ┌───────────┴───────────┐                        │
	│         ▼                       ▼                        │
	│  ┌─────────────┐        ┌──────────────┐                 │
	│  │NativeAdapter│        │SandboxAdapter│                 │
	│  │ host dir,   │        │ in-memory,   │                 │
	│  │ os.Rename   │        │ handle walk, │                 │
	│  │ native      │        │ rename is    │                 │
	│  │             │        │ relink+unlink│                 │
	│  └─────────────┘        └──────────────┘                 │
	│                                                          │
	└──────────────────────────────────────────────────────────┘

Each backend's quirks stay inside its own implementation: the sandboxed
store navigates one directory handle per level and has no native rename;
neither backend is assumed to offer a true O(1) append, so AppendFile is
read-concatenate-rewrite on both.

# Failure Policy

A missing path (or missing intermediate directory) on a read-type operation
surfaces as ErrNotFound. Exists, IsFile, and IsDir never return errors,
only false. Everything else propagates unchanged. Using an adapter before
Initialize fails with ErrNotInitialized, and a path that normalizes to the
root where a file is required fails with ErrInvalidPath.
*/
package storage

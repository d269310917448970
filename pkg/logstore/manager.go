package logstore

import (
	"fmt"
	"sync"
	"time"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/metrics"
	"github.com/skiff-run/skiff/pkg/storage"
	"github.com/skiff-run/skiff/pkg/types"
)

// ManagerConfig tunes one entity's log pipeline
type ManagerConfig struct {
	FlushInterval time.Duration
	Rotation      RotatorConfig
}

// writeJob is either a drained batch or a barrier used to wait for the
// writer queue to drain
type writeJob struct {
	entries []types.LogEntry
	barrier chan struct{}
}

// Manager is the per-entity log facade: one Buffer feeding one Rotator
// under <basePath>/<entityType>s/<entityID>. Log never blocks the caller on
// storage I/O; a background writer owns the rotator and applies batches in
// arrival order. Rotator write failures are counted, not propagated —
// logging is best-effort by contract.
//
// One Manager owns its entity directory exclusively for its lifetime.
type Manager struct {
	entityType types.EntityType
	entityID   string
	rotator    *Rotator
	buffer     *Buffer

	// jobMu guards sends against the queue closing in Destroy
	jobMu     sync.Mutex
	jobs      chan writeJob
	destroyed bool

	done   chan struct{}
	closed sync.Once
}

// EntityLogDir returns the log directory for an entity, relative to the
// adapter root.
func EntityLogDir(basePath string, entityType types.EntityType, entityID string) string {
	base := storage.Normalize(basePath)
	if base == "" {
		return fmt.Sprintf("%ss/%s", entityType, entityID)
	}
	return fmt.Sprintf("%s/%ss/%s", base, entityType, entityID)
}

// NewManager creates the log pipeline for one node or pod
func NewManager(adapter storage.Adapter, basePath string, entityType types.EntityType, entityID string, cfg ManagerConfig) *Manager {
	m := &Manager{
		entityType: entityType,
		entityID:   entityID,
		rotator:    NewRotator(adapter, EntityLogDir(basePath, entityType, entityID), cfg.Rotation),
		jobs:       make(chan writeJob, 64),
		done:       make(chan struct{}),
	}

	m.buffer = NewBuffer(m.enqueue, cfg.FlushInterval)

	go m.writeLoop()

	return m
}

// Initialize ensures the entity log directory exists. Idempotent.
func (m *Manager) Initialize() error {
	return m.rotator.Initialize()
}

// Log buffers one entry; it never blocks on storage I/O
func (m *Manager) Log(entry types.LogEntry) {
	m.buffer.Add(entry)
}

// enqueue is the buffer's flush callback
func (m *Manager) enqueue(entries []types.LogEntry) {
	m.submit(writeJob{entries: entries})
}

// submit hands a job to the writer unless the queue is already closed
func (m *Manager) submit(job writeJob) bool {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	if m.destroyed {
		return false
	}
	m.jobs <- job
	return true
}

// writeLoop applies drained batches to the rotator in arrival order
func (m *Manager) writeLoop() {
	defer close(m.done)

	logger := log.WithComponent("logstore").With().
		Str("entity_type", string(m.entityType)).
		Str("entity_id", m.entityID).Logger()

	for job := range m.jobs {
		if job.barrier != nil {
			close(job.barrier)
			continue
		}
		if err := m.rotator.Write(job.entries); err != nil {
			metrics.LogWriteFailures.Inc()
			logger.Warn().Err(err).Int("entries", len(job.entries)).Msg("log segment write failed")
			continue
		}
		metrics.LogEntriesFlushed.Add(float64(len(job.entries)))
	}
}

// ReadLogs flushes the buffer, waits for the pending writes to land, then
// reads back the stored entries. Best-effort "read recent including
// just-buffered", not a strict consistency guarantee.
func (m *Manager) ReadLogs(limit int) ([]types.LogEntry, error) {
	m.buffer.Flush()

	// barrier through the writer queue so the flush we just forced has been
	// applied before reading
	barrier := make(chan struct{})
	if m.submit(writeJob{barrier: barrier}) {
		<-barrier
	}

	return m.rotator.ReadAll(limit)
}

// Destroy stops the buffer (final flush included) and the background
// writer. Persisted segments are left in place. Idempotent.
func (m *Manager) Destroy() {
	m.closed.Do(func() {
		m.buffer.Destroy()

		m.jobMu.Lock()
		m.destroyed = true
		close(m.jobs)
		m.jobMu.Unlock()

		<-m.done
	})
}

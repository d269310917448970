package logstore

import (
	"sync"
	"time"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/types"
)

const (
	// DefaultFlushInterval is how often the buffer drains on its own
	DefaultFlushInterval = 5 * time.Second
)

// FlushFunc receives one drained batch in original insertion order
type FlushFunc func(entries []types.LogEntry)

// Buffer accumulates log entries in memory and hands them to a flush
// callback in batches: on a timer, immediately for fatal entries, and once
// more on destroy. The callback must never be able to crash the producer,
// so errors and panics inside it are swallowed and logged.
type Buffer struct {
	mu      sync.Mutex
	entries []types.LogEntry

	// flushMu serializes batches: batch N is handed to the callback before
	// batch N+1 is assembled
	flushMu sync.Mutex

	flushFn  FlushFunc
	interval time.Duration

	stopCh    chan struct{}
	destroyed bool
	wg        sync.WaitGroup
}

// NewBuffer creates a buffer draining on the given interval (zero means
// DefaultFlushInterval) and starts its background timer.
func NewBuffer(flushFn FlushFunc, interval time.Duration) *Buffer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	b := &Buffer{
		flushFn:  flushFn,
		interval: interval,
		stopCh:   make(chan struct{}),
	}

	b.wg.Add(1)
	go b.run()

	return b
}

func (b *Buffer) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Add appends an entry. Adding after Destroy is a silent no-op. A fatal
// entry forces a flush before Add returns.
func (b *Buffer) Add(entry types.LogEntry) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.entries = append(b.entries, entry)
	b.mu.Unlock()

	if entry.Level == types.LogLevelFatal {
		b.Flush()
	}
}

// Flush drains the entire pending sequence atomically and invokes the
// callback with it. An empty buffer is a no-op.
func (b *Buffer) Flush() {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.mu.Lock()
	if len(b.entries) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.entries
	b.entries = nil
	b.mu.Unlock()

	b.deliver(batch)
}

// deliver invokes the callback, swallowing panics: log delivery is
// best-effort and must never crash workload execution.
func (b *Buffer) deliver(batch []types.LogEntry) {
	defer func() {
		if r := recover(); r != nil {
			logger := log.WithComponent("logbuffer")
			logger.Warn().
				Interface("panic", r).
				Int("entries", len(batch)).
				Msg("flush callback panicked, batch lost")
		}
	}()
	b.flushFn(batch)
}

// Len reports the number of buffered entries
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Destroy stops the timer and performs one final flush. Idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	b.mu.Unlock()

	close(b.stopCh)
	b.wg.Wait()
	b.Flush()
}

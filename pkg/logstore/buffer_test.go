package logstore

import (
	"sync"
	"testing"
	"time"

	"github.com/skiff-run/skiff/pkg/types"
)

// batchRecorder captures flushed batches for inspection
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]types.LogEntry
}

func (r *batchRecorder) flush(entries []types.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, entries)
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *batchRecorder) all() []types.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.LogEntry
	for _, b := range r.batches {
		out = append(out, b...)
	}
	return out
}

func entry(level types.LogLevel, msg string) types.LogEntry {
	return types.NewLogEntry(level, msg, nil)
}

func TestBuffer_FatalFlushesImmediately(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBuffer(rec.flush, time.Hour) // timer effectively disabled
	defer b.Destroy()

	b.Add(entry(types.LogLevelInfo, "one"))
	b.Add(entry(types.LogLevelWarn, "two"))
	b.Add(entry(types.LogLevelFatal, "boom"))

	// fatal flush completes before Add returns
	if got := rec.count(); got != 1 {
		t.Fatalf("flush count = %d, want 1", got)
	}
	batch := rec.batches[0]
	if len(batch) != 3 {
		t.Fatalf("batch size = %d, want 3", len(batch))
	}
	want := []string{"one", "two", "boom"}
	for i, msg := range want {
		if batch[i].Message != msg {
			t.Errorf("batch[%d].Message = %q, want %q", i, batch[i].Message, msg)
		}
	}
}

func TestBuffer_EmptyFlushIsNoop(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBuffer(rec.flush, time.Hour)
	defer b.Destroy()

	b.Flush()
	if got := rec.count(); got != 0 {
		t.Errorf("flush count = %d, want 0", got)
	}
}

func TestBuffer_TimerFlush(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBuffer(rec.flush, 20*time.Millisecond)
	defer b.Destroy()

	b.Add(entry(types.LogLevelInfo, "timed"))

	deadline := time.Now().Add(time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() == 0 {
		t.Fatal("timer flush never fired")
	}
}

func TestBuffer_DestroyFlushesAndStops(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBuffer(rec.flush, time.Hour)

	b.Add(entry(types.LogLevelInfo, "pending"))
	b.Destroy()

	if got := rec.count(); got != 1 {
		t.Fatalf("flush count after destroy = %d, want 1", got)
	}

	// no-op after destroy
	b.Add(entry(types.LogLevelInfo, "late"))
	b.Flush()
	b.Destroy()

	entries := rec.all()
	if len(entries) != 1 || entries[0].Message != "pending" {
		t.Errorf("entries after destroy = %v, want only the pending one", entries)
	}
}

func TestBuffer_CallbackPanicIsSwallowed(t *testing.T) {
	calls := 0
	b := NewBuffer(func(entries []types.LogEntry) {
		calls++
		panic("sink exploded")
	}, time.Hour)
	defer b.Destroy()

	b.Add(entry(types.LogLevelFatal, "boom")) // must not panic the producer
	if calls != 1 {
		t.Fatalf("callback calls = %d, want 1", calls)
	}

	// buffer keeps working after a callback failure
	b.Add(entry(types.LogLevelFatal, "again"))
	if calls != 2 {
		t.Fatalf("callback calls = %d, want 2", calls)
	}
}

func TestBuffer_NoDuplicatesAcrossFlushes(t *testing.T) {
	rec := &batchRecorder{}
	b := NewBuffer(rec.flush, time.Hour)
	defer b.Destroy()

	b.Add(entry(types.LogLevelInfo, "a"))
	b.Flush()
	b.Add(entry(types.LogLevelInfo, "b"))
	b.Flush()
	b.Flush() // drained, no-op

	entries := rec.all()
	if len(entries) != 2 || entries[0].Message != "a" || entries[1].Message != "b" {
		t.Errorf("flushed entries = %v, want [a b]", entries)
	}
}

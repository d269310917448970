package logstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/skiff-run/skiff/pkg/log"
	"github.com/skiff-run/skiff/pkg/storage"
	"github.com/skiff-run/skiff/pkg/types"
)

const (
	// DefaultMaxSegmentBytes is the size at which the active segment rolls
	DefaultMaxSegmentBytes = 10 * 1024 * 1024

	// DefaultMaxSegmentAge is the age at which the active segment rolls
	DefaultMaxSegmentAge = time.Hour

	// DefaultMaxSegments caps how many segment files are retained
	DefaultMaxSegments = 5

	segmentPrefix = "log-"
	segmentSuffix = ".jsonl"
)

// RotatorConfig tunes segment rollover and retention. Zero values pick the
// defaults.
type RotatorConfig struct {
	MaxSegmentBytes int64
	MaxSegmentAge   time.Duration
	MaxSegments     int
}

// Rotator persists log entries as size- and age-bounded JSONL segment files
// in one entity directory, pruning the oldest segments past the retention
// cap. The byte and age counters for the active segment are authoritative
// in-process state for this rotator's own writes; a rotator is the single
// owner of its directory.
type Rotator struct {
	adapter storage.Adapter
	dir     string
	cfg     RotatorConfig

	active         string
	activeSize     int64
	activeOpenedAt time.Time
}

// NewRotator creates a rotator for one entity log directory
func NewRotator(adapter storage.Adapter, dir string, cfg RotatorConfig) *Rotator {
	if cfg.MaxSegmentBytes <= 0 {
		cfg.MaxSegmentBytes = DefaultMaxSegmentBytes
	}
	if cfg.MaxSegmentAge <= 0 {
		cfg.MaxSegmentAge = DefaultMaxSegmentAge
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = DefaultMaxSegments
	}
	return &Rotator{adapter: adapter, dir: dir, cfg: cfg}
}

// Initialize ensures the entity log directory exists. Idempotent.
func (r *Rotator) Initialize() error {
	if err := r.adapter.Mkdir(r.dir, true); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// segmentName builds a lexically sortable file name from the current time.
// Characters that do not belong in file names are replaced.
func segmentName(now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return segmentPrefix + ts + segmentSuffix
}

// Write serializes entries one per line and appends them to the active
// segment, rolling over first when the pending bytes would push the segment
// past its size bound or the segment has outlived its age bound.
func (r *Rotator) Write(entries []types.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	var buf strings.Builder
	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to serialize log entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	pending := int64(buf.Len())

	if r.active != "" {
		overSize := r.activeSize+pending > r.cfg.MaxSegmentBytes
		overAge := time.Since(r.activeOpenedAt) > r.cfg.MaxSegmentAge
		if overSize || overAge {
			r.active = ""
			r.activeSize = 0
		}
	}

	if r.active == "" {
		r.prune()
		// two rotations inside one millisecond must not share a segment
		now := time.Now()
		name := segmentName(now)
		for r.adapter.Exists(r.dir + "/" + name) {
			now = now.Add(time.Millisecond)
			name = segmentName(now)
		}
		r.active = name
		r.activeSize = 0
		r.activeOpenedAt = time.Now()
	}

	path := r.dir + "/" + r.active
	if err := r.adapter.AppendFile(path, []byte(buf.String())); err != nil {
		return fmt.Errorf("failed to append log segment: %w", err)
	}
	r.activeSize += pending
	return nil
}

// prune deletes the oldest segments so that, counting the one about to be
// created, no more than MaxSegments remain. Best-effort: a failed deletion
// is logged and ignored.
func (r *Rotator) prune() {
	segments := r.ListSegments()
	excess := len(segments) - (r.cfg.MaxSegments - 1)
	for i := 0; i < excess; i++ {
		path := r.dir + "/" + segments[i]
		if err := r.adapter.RemoveFile(path); err != nil {
			logger := log.WithComponent("rotator")
			logger.Warn().
				Err(err).
				Str("segment", segments[i]).
				Msg("failed to prune log segment")
		}
	}
}

// ListSegments returns segment file names sorted ascending, which is
// chronological given the timestamp naming. Listing failures yield an
// empty slice rather than an error.
func (r *Rotator) ListSegments() []string {
	names, err := r.adapter.ReadDir(r.dir)
	if err != nil {
		return nil
	}
	segments := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			segments = append(segments, name)
		}
	}
	return segments
}

// ReadAll returns the stored entries across all segments in chronological
// order, skipping unparseable lines. A positive limit returns only the most
// recent limit entries.
func (r *Rotator) ReadAll(limit int) ([]types.LogEntry, error) {
	var entries []types.LogEntry

	for _, segment := range r.ListSegments() {
		data, err := r.adapter.ReadFile(r.dir + "/" + segment)
		if err != nil {
			return nil, fmt.Errorf("failed to read log segment %s: %w", segment, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var entry types.LogEntry
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				// malformed line, keep the rest of the segment
				continue
			}
			entries = append(entries, entry)
		}
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

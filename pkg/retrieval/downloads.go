package retrieval

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/skiff-run/skiff/pkg/types"
)

const (
	// DefaultDownloadTimeout bounds how long a pending download waits for
	// its reply
	DefaultDownloadTimeout = 60 * time.Second
)

var (
	// ErrTimeout is returned when no reply arrived within the bound
	ErrTimeout = errors.New("volume download timed out")

	// ErrUnreachable is returned when the target node is not connected
	ErrUnreachable = errors.New("node is not connected")
)

// RemoteError is a failure the node itself reported for a download
type RemoteError struct {
	VolumeName string
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("node reported download failure for volume %s: %s", e.VolumeName, e.Message)
}

// Result is the single terminal outcome of one pending download
type Result struct {
	Files []types.VolumeFileEntry
	Err   error
}

type pendingDownload struct {
	ch    chan Result
	timer *time.Timer
}

// Downloads correlates outbound download requests with their eventual
// replies. One entry per correlation id, created on send and removed on
// the first terminal transition: success reply, error reply, or timeout.
// Later transitions for the same id are no-ops.
//
// Construct one instance per control-plane process and inject it where the
// download path and the reply handler need it.
type Downloads struct {
	mu      sync.Mutex
	pending map[string]*pendingDownload
	timeout time.Duration
}

// NewDownloads creates a download registry. Zero timeout picks the default.
func NewDownloads(timeout time.Duration) *Downloads {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &Downloads{
		pending: make(map[string]*pendingDownload),
		timeout: timeout,
	}
}

// Register creates a pending entry for a fresh correlation id and returns
// the channel its single terminal Result will arrive on.
func (d *Downloads) Register(correlationID string) <-chan Result {
	p := &pendingDownload{
		ch: make(chan Result, 1),
	}
	p.timer = time.AfterFunc(d.timeout, func() {
		d.Reject(correlationID, ErrTimeout)
	})

	d.mu.Lock()
	d.pending[correlationID] = p
	d.mu.Unlock()

	return p.ch
}

// take removes and returns the pending entry, stopping its timer. Returns
// nil when the id was already resolved.
func (d *Downloads) take(correlationID string) *pendingDownload {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[correlationID]
	if !ok {
		return nil
	}
	delete(d.pending, correlationID)
	p.timer.Stop()
	return p
}

// Resolve completes a pending download with its file list. Reports false
// when the id was unknown or already resolved.
func (d *Downloads) Resolve(correlationID string, files []types.VolumeFileEntry) bool {
	p := d.take(correlationID)
	if p == nil {
		return false
	}
	p.ch <- Result{Files: files}
	return true
}

// Reject completes a pending download with an error. Reports false when
// the id was unknown or already resolved.
func (d *Downloads) Reject(correlationID string, err error) bool {
	p := d.take(correlationID)
	if p == nil {
		return false
	}
	p.ch <- Result{Err: err}
	return true
}

// Cancel discards a pending entry without delivering a result, used when
// the request could not be sent in the first place.
func (d *Downloads) Cancel(correlationID string) bool {
	return d.take(correlationID) != nil
}

// PendingCount reports how many downloads are awaiting a reply
func (d *Downloads) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

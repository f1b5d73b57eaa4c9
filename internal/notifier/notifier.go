package notifier

import (
	"slices"
	"sync"
	"time"

	"github.com/genricoloni/mediaplayer/internal/domain"
	"go.uber.org/zap"
)

// Callback receives every distinct snapshot
type Callback func(snapshot domain.Snapshot)

// Notifier delivers snapshots to a callback only when they differ from the
// last delivered one. With a non-zero delay, bursts of submissions are
// coalesced and only the latest snapshot of the burst is considered.
type Notifier struct {
	logger   *zap.Logger
	delay    time.Duration
	callback Callback

	// deliverMu serializes compare-and-deliver so callbacks never overlap
	deliverMu sync.Mutex
	lastSent  domain.Snapshot
	hasSent   bool

	mu         sync.Mutex
	timer      *time.Timer
	generation uint64 // Bumped on every submit; a timer only fires for its own generation
	stopped    bool
}

// New creates a notifier. A delay of zero disables debouncing.
func New(logger *zap.Logger, delay time.Duration, callback Callback) *Notifier {
	if delay < 0 {
		delay = 0
	}
	return &Notifier{
		logger:   logger,
		delay:    delay,
		callback: callback,
	}
}

// MaybeNotify invokes the callback with current unless it equals the last
// delivered snapshot. It reports whether the callback ran.
func (n *Notifier) MaybeNotify(current domain.Snapshot) bool {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()
	return n.deliverLocked(current)
}

// Submit hands a freshly built snapshot to the notifier. Without a delay it
// behaves like MaybeNotify. With a delay, delivery is scheduled after the
// delay and any previously scheduled delivery is dropped.
func (n *Notifier) Submit(current domain.Snapshot) {
	if n.delay == 0 {
		n.MaybeNotify(current)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stopped {
		return
	}

	n.generation++
	gen := n.generation
	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.delay, func() {
		n.fire(gen, current)
	})
}

// Pending reports whether a debounced delivery is scheduled
func (n *Notifier) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timer != nil
}

// Stop cancels any pending delivery. Later submissions are ignored when
// debouncing is enabled.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.stopped = true
	n.generation++
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
}

func (n *Notifier) fire(gen uint64, snapshot domain.Snapshot) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()

	n.mu.Lock()
	if gen != n.generation || n.stopped {
		n.mu.Unlock()
		return
	}
	n.timer = nil
	n.mu.Unlock()

	n.deliverLocked(snapshot)
}

func (n *Notifier) deliverLocked(current domain.Snapshot) bool {
	if n.hasSent && n.lastSent.Equal(current) {
		return false
	}
	n.lastSent = slices.Clone(current)
	n.hasSent = true

	n.logger.Debug("Delivering snapshot", zap.Int("players", len(current)))
	n.callback(slices.Clone(current))
	return true
}

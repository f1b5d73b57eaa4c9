package publish

import (
	"slices"
	"sync"

	"github.com/genricoloni/mediaplayer/internal/domain"
	"go.uber.org/zap"
)

const subscriberBuffer = 8

// Hub fans out delivered snapshots to every subscriber. New subscribers
// receive the last published snapshot immediately.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[chan domain.Snapshot]struct{}
	last    domain.Snapshot
	hasLast bool
}

// NewHub creates an empty hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[chan domain.Snapshot]struct{}),
	}
}

// Publish stores snapshot and forwards it to all subscribers. A subscriber
// whose buffer is full misses this snapshot.
func (h *Hub) Publish(snapshot domain.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = slices.Clone(snapshot)
	h.hasLast = true
	for ch := range h.clients {
		select {
		case ch <- slices.Clone(snapshot):
		default:
			h.logger.Warn("Subscriber channel full, dropping snapshot", zap.Int("players", len(snapshot)))
		}
	}
}

// Last returns the most recently published snapshot
func (h *Hub) Last() (domain.Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.last), h.hasLast
}

// Subscribe registers a subscriber. The returned cancel function removes it
// and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, subscriberBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	if h.hasLast {
		ch <- slices.Clone(h.last)
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.clients, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of registered subscribers
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

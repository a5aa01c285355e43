package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"giftbot/entity"
	"giftbot/internal/listener"
)

// ClickHub queues button presses per broadcast channel. It implements
// listener.Source; the bot publishes into it from the update dispatcher.
type ClickHub struct {
	mu     sync.RWMutex
	queues map[int64]chan entity.Click
	size   int
	open   bool
	down   chan struct{} // closed while the hub is unavailable
}

func NewClickHub(size int) *ClickHub {
	if size <= 0 {
		size = 256
	}
	down := make(chan struct{})
	close(down)
	return &ClickHub{
		queues: make(map[int64]chan entity.Click),
		size:   size,
		down:   down,
	}
}

// Register creates the queue for channelID. Clicks on unregistered channels are refused.
func (h *ClickHub) Register(channelID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.queues[channelID]; !ok {
		h.queues[channelID] = make(chan entity.Click, h.size)
	}
}

// Open marks the hub available; called once polling is running.
func (h *ClickHub) Open() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.open {
		return
	}
	h.open = true
	h.down = make(chan struct{})
}

// Close makes every pending and future Next return listener.ErrSourceUnavailable.
func (h *ClickHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return
	}
	h.open = false
	close(h.down)
}

// Publish enqueues the click without blocking and reports whether it was accepted.
func (h *ClickHub) Publish(click entity.Click) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	queue, ok := h.queues[click.ChannelID]
	if !ok || !h.open {
		return false
	}
	select {
	case queue <- click:
		return true
	default:
		return false
	}
}

func (h *ClickHub) Next(ctx context.Context, channelID int64, wait time.Duration) (*entity.Click, error) {
	h.mu.RLock()
	queue, ok := h.queues[channelID]
	open, down := h.open, h.down
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: channel %d not registered", listener.ErrSourceUnavailable, channelID)
	}
	if !open {
		return nil, listener.ErrSourceUnavailable
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-down:
		return nil, listener.ErrSourceUnavailable
	case click := <-queue:
		return &click, nil
	case <-timer.C:
		return nil, nil
	}
}

// Pending returns the number of queued clicks for channelID.
func (h *ClickHub) Pending(channelID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.queues[channelID])
}

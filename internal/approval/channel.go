// Package approval bridges the blocking orchestrator and the asynchronous
// browser UI, entirely in-process: an outbound FIFO event feed consumed by
// long-polling, and an inbound single-slot decision mailbox.
package approval

import (
	"context"
	"sync"
	"time"

	"github.com/davebot/dave/internal/models"
)

// Channel carries status events out to the UI and user decisions back in.
//
// Concurrency contract: the orchestrator goroutine is the only event
// producer and the only decision consumer; HTTP handler goroutines are the
// only decision producers and the only event consumer (via NextEvent).
type Channel struct {
	mu     sync.Mutex
	events []models.Event
	notify chan struct{}

	decision     *models.Decision
	decisionSeen chan struct{}
}

// NewChannel creates an empty channel.
func NewChannel() *Channel {
	return &Channel{
		notify:       make(chan struct{}, 1),
		decisionSeen: make(chan struct{}, 1),
	}
}

// Publish appends an event to the outbound feed. Never blocks.
func (c *Channel) Publish(e models.Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// NextEvent pops the oldest pending event, waiting up to timeout for one to
// arrive. Returns false when the wait expires with the feed still empty.
// Events are delivered in publish order, exactly once, to the single
// polling consumer.
func (c *Channel) NextEvent(timeout time.Duration) (models.Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		if len(c.events) > 0 {
			e := c.events[0]
			c.events = c.events[1:]
			c.mu.Unlock()
			return e, true
		}
		c.mu.Unlock()

		select {
		case <-c.notify:
		case <-deadline.C:
			return models.Event{}, false
		}
	}
}

// PostDecision offers a decision to the mailbox. While a decision is
// already pending the call is a no-op and returns false: the first decision
// wins, so a slow double-click cannot corrupt state.
func (c *Channel) PostDecision(d *models.Decision) bool {
	c.mu.Lock()
	if c.decision != nil {
		c.mu.Unlock()
		return false
	}
	c.decision = d
	c.mu.Unlock()

	select {
	case c.decisionSeen <- struct{}{}:
	default:
	}
	return true
}

// WaitForDecision blocks the calling goroutine until a decision is posted
// or ctx is cancelled. The wait is deliberately unbounded: human approval
// has no deadline. Callers must Reset before the next wait, or the
// already-consumed decision is returned again immediately.
func (c *Channel) WaitForDecision(ctx context.Context) (*models.Decision, error) {
	for {
		c.mu.Lock()
		if c.decision != nil {
			d := c.decision
			c.mu.Unlock()
			return d, nil
		}
		c.mu.Unlock()

		select {
		case <-c.decisionSeen:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Reset clears the decision slot so the channel can accept the next
// decision window. Prevents a stale decision from being replayed.
func (c *Channel) Reset() {
	c.mu.Lock()
	c.decision = nil
	c.mu.Unlock()

	select {
	case <-c.decisionSeen:
	default:
	}
}

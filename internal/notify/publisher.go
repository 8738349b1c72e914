// Package notify delivers fire-and-forget turn completion events to
// listening UI layers. Delivery is at-most-once best-effort and never part
// of the orchestration's transactional contract.
package notify

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/agentcore-dev/agentcore/go/internal/models"
)

// ChannelNotifier fans completion events out to per-session subscribers
type ChannelNotifier struct {
	mu          sync.RWMutex
	subscribers map[string][]chan models.CompletionEvent
	log         logr.Logger
}

// NewChannelNotifier creates a ChannelNotifier
func NewChannelNotifier(log logr.Logger) *ChannelNotifier {
	return &ChannelNotifier{
		subscribers: make(map[string][]chan models.CompletionEvent),
		log:         log.WithName("notify"),
	}
}

// PublishCompletion delivers the event to every subscriber of the session.
// Slow subscribers are skipped, never waited on.
func (n *ChannelNotifier) PublishCompletion(_ context.Context, event models.CompletionEvent) {
	n.mu.RLock()
	subscribers := n.subscribers[event.SessionID]
	n.mu.RUnlock()

	for _, ch := range subscribers {
		select {
		case ch <- event:
		default:
			n.log.V(1).Info("dropping completion event for slow subscriber",
				"sessionID", event.SessionID, "turnID", event.TurnID)
		}
	}
}

// Subscribe returns a channel receiving the session's completion events
func (n *ChannelNotifier) Subscribe(sessionID string) <-chan models.CompletionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan models.CompletionEvent, 16)
	n.subscribers[sessionID] = append(n.subscribers[sessionID], ch)
	return ch
}

// Unsubscribe removes the subscription and closes its channel
func (n *ChannelNotifier) Unsubscribe(sessionID string, ch <-chan models.CompletionEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()

	subscribers := n.subscribers[sessionID]
	for i, sub := range subscribers {
		if sub == ch {
			n.subscribers[sessionID] = append(subscribers[:i], subscribers[i+1:]...)
			close(sub)
			break
		}
	}
	if len(n.subscribers[sessionID]) == 0 {
		delete(n.subscribers, sessionID)
	}
}

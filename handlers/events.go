package handlers

import (
	"sync"

	"github.com/wepress/agentquery/agent"
)

// EventBus is a per-session pub/sub for live message fan-out to
// WebSocket subscribers watching a running query.
type EventBus struct {
	mu       sync.Mutex
	sessions map[string]map[chan agent.Message]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{sessions: make(map[string]map[chan agent.Message]struct{})}
}

// Subscribe returns a channel receiving the session's broadcast messages.
func (eb *EventBus) Subscribe(sessionID string) chan agent.Message {
	ch := make(chan agent.Message, 64)
	eb.mu.Lock()
	subs := eb.sessions[sessionID]
	if subs == nil {
		subs = make(map[chan agent.Message]struct{})
		eb.sessions[sessionID] = subs
	}
	subs[ch] = struct{}{}
	eb.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (eb *EventBus) Unsubscribe(sessionID string, ch chan agent.Message) {
	eb.mu.Lock()
	if subs := eb.sessions[sessionID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(eb.sessions, sessionID)
		}
	}
	eb.mu.Unlock()
}

// Broadcast sends a message to every subscriber of the session.
func (eb *EventBus) Broadcast(sessionID string, m agent.Message) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for ch := range eb.sessions[sessionID] {
		select {
		case ch <- m:
		default:
			// Drop for slow subscribers; the query's own stream is the
			// source of truth.
		}
	}
}

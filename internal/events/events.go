// Package events defines the decision-loop event stream and its publishers.
package events

import (
	"context"
	"sync"
)

// DecisionEvent is emitted once per completed decision cycle.
type DecisionEvent struct {
	CycleID   string  `json:"cycle_id"`
	GameID    string  `json:"game_id"`
	StateKey  string  `json:"state_key"`
	Mode      string  `json:"mode"`
	Outcome   string  `json:"outcome"` // executed, suggested, skipped
	Source    string  `json:"source,omitempty"`
	Algorithm string  `json:"algorithm,omitempty"`
	Expected  float32 `json:"expected_reward,omitempty"`
}

// FeedbackEvent is emitted when an action's observed outcome closes the loop.
type FeedbackEvent struct {
	SuggestionID string  `json:"suggestion_id"`
	GameID       string  `json:"game_id"`
	Algorithm    string  `json:"algorithm,omitempty"`
	Reward       float32 `json:"reward"`
	Success      bool    `json:"success"`
}

// Publisher delivers decision-loop events to interested parties.
type Publisher interface {
	PublishDecision(ctx context.Context, event DecisionEvent) error
	PublishFeedback(ctx context.Context, event FeedbackEvent) error
}

// Listener receives events synchronously from an ObserverPublisher.
type Listener interface {
	OnDecision(event DecisionEvent)
	OnFeedback(event FeedbackEvent)
}

// ObserverPublisher fans events out to registered listeners in FIFO
// registration order. Delivery iterates over a snapshot of the listener
// list, so a listener may subscribe or unsubscribe from inside a callback
// without corrupting the iteration.
type ObserverPublisher struct {
	mu        sync.Mutex
	listeners []Listener
}

// NewObserverPublisher creates a publisher with no listeners.
func NewObserverPublisher() *ObserverPublisher {
	return &ObserverPublisher{}
}

// Subscribe appends a listener.
func (p *ObserverPublisher) Subscribe(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Unsubscribe removes a listener.
func (p *ObserverPublisher) Unsubscribe(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.listeners {
		if existing == l {
			p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
			return
		}
	}
}

func (p *ObserverPublisher) snapshot() []Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Listener, len(p.listeners))
	copy(out, p.listeners)
	return out
}

// PublishDecision implements Publisher.
func (p *ObserverPublisher) PublishDecision(ctx context.Context, event DecisionEvent) error {
	for _, l := range p.snapshot() {
		l.OnDecision(event)
	}
	return nil
}

// PublishFeedback implements Publisher.
func (p *ObserverPublisher) PublishFeedback(ctx context.Context, event FeedbackEvent) error {
	for _, l := range p.snapshot() {
		l.OnFeedback(event)
	}
	return nil
}

// NopPublisher drops all events.
type NopPublisher struct{}

// PublishDecision implements Publisher.
func (NopPublisher) PublishDecision(ctx context.Context, event DecisionEvent) error { return nil }

// PublishFeedback implements Publisher.
func (NopPublisher) PublishFeedback(ctx context.Context, event FeedbackEvent) error { return nil }

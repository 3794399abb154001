package events

import (
	"context"
	"sync"
)

// EventPublisher is the interface for publishing document change events.
type EventPublisher interface {
	PublishChanged(ctx context.Context, event *DocumentChangedEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing.
type NoOpPublisher struct{}

// PublishChanged is a no-op.
func (p *NoOpPublisher) PublishChanged(_ context.Context, _ *DocumentChangedEvent) error {
	return nil
}

// CallbackPublisher hands every event to a callback.
type CallbackPublisher struct {
	callback func(ctx context.Context, event *DocumentChangedEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(cb func(ctx context.Context, event *DocumentChangedEvent) error) *CallbackPublisher {
	return &CallbackPublisher{callback: cb}
}

// PublishChanged calls the callback.
func (p *CallbackPublisher) PublishChanged(ctx context.Context, event *DocumentChangedEvent) error {
	return p.callback(ctx, event)
}

// RecordingPublisher keeps every published event in memory.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []DocumentChangedEvent
}

// PublishChanged records a copy of event.
func (p *RecordingPublisher) PublishChanged(_ context.Context, event *DocumentChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *event)
	return nil
}

// Events returns the recorded events in publish order.
func (p *RecordingPublisher) Events() []DocumentChangedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DocumentChangedEvent(nil), p.events...)
}

package events

import "context"

// EventPublisher is the interface for publishing bridge events.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, event *CommandCompletedEvent) error
	PublishLifecycle(ctx context.Context, event *LifecycleEvent) error
}

// NoOpPublisher is an EventPublisher that does nothing (for running without COMMS).
type NoOpPublisher struct{}

// PublishCompleted is a no-op.
func (p *NoOpPublisher) PublishCompleted(_ context.Context, _ *CommandCompletedEvent) error {
	return nil
}

// PublishLifecycle is a no-op.
func (p *NoOpPublisher) PublishLifecycle(_ context.Context, _ *LifecycleEvent) error {
	return nil
}

// CallbackPublisher is an EventPublisher that calls callback functions (for testing).
// Either callback may be nil.
type CallbackPublisher struct {
	completed func(ctx context.Context, event *CommandCompletedEvent) error
	lifecycle func(ctx context.Context, event *LifecycleEvent) error
}

// NewCallbackPublisher creates a new CallbackPublisher.
func NewCallbackPublisher(
	completed func(ctx context.Context, event *CommandCompletedEvent) error,
	lifecycle func(ctx context.Context, event *LifecycleEvent) error,
) *CallbackPublisher {
	return &CallbackPublisher{completed: completed, lifecycle: lifecycle}
}

// PublishCompleted calls the completion callback.
func (p *CallbackPublisher) PublishCompleted(ctx context.Context, event *CommandCompletedEvent) error {
	if p.completed == nil {
		return nil
	}
	return p.completed(ctx, event)
}

// PublishLifecycle calls the lifecycle callback.
func (p *CallbackPublisher) PublishLifecycle(ctx context.Context, event *LifecycleEvent) error {
	if p.lifecycle == nil {
		return nil
	}
	return p.lifecycle(ctx, event)
}

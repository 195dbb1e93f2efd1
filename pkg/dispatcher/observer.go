package dispatcher

import (
	"context"
	"time"
)

// Outcome describes one finished command.
type Outcome struct {
	ID          string
	Type        string
	Status      string
	Error       string
	Duration    time.Duration
	CompletedAt time.Time
}

// Observer is told about every resolved command. It runs on the dispatch
// goroutine and must not block.
type Observer interface {
	CommandCompleted(ctx context.Context, o Outcome)
}

// TickObserver is optionally implemented by observers that want per-tick totals.
type TickObserver interface {
	TickCompleted(drained int, elapsed time.Duration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o Outcome)

// CommandCompleted calls f.
func (f ObserverFunc) CommandCompleted(ctx context.Context, o Outcome) {
	f(ctx, o)
}

// Observers fans out to several observers.
type Observers []Observer

// CommandCompleted forwards to every observer.
func (obs Observers) CommandCompleted(ctx context.Context, o Outcome) {
	for _, ob := range obs {
		if ob != nil {
			ob.CommandCompleted(ctx, o)
		}
	}
}

// TickCompleted forwards to every observer that implements TickObserver.
func (obs Observers) TickCompleted(drained int, elapsed time.Duration) {
	for _, ob := range obs {
		if to, ok := ob.(TickObserver); ok {
			to.TickCompleted(drained, elapsed)
		}
	}
}

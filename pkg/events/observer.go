package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/morezero/command-bridge/pkg/dispatcher"
)

const observerLogPrefix = "events:observer"

// Observer turns dispatch outcomes into completion events. CommandCompleted only
// enqueues; Run does the publishing on its own goroutine so the host tick never
// waits on COMMS. Events are dropped when the buffer is full.
type Observer struct {
	pub     EventPublisher
	queue   chan *CommandCompletedEvent
	dropped atomic.Uint64
}

// NewObserver creates an Observer with the given buffer size.
func NewObserver(pub EventPublisher, buffer int) *Observer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Observer{pub: pub, queue: make(chan *CommandCompletedEvent, buffer)}
}

// CommandCompleted implements dispatcher.Observer.
func (o *Observer) CommandCompleted(_ context.Context, out dispatcher.Outcome) {
	event := &CommandCompletedEvent{
		ID:         out.ID,
		Type:       out.Type,
		Status:     out.Status,
		Error:      out.Error,
		DurationMs: float64(out.Duration.Microseconds()) / 1000,
		Timestamp:  out.CompletedAt.Format(time.RFC3339Nano),
	}
	select {
	case o.queue <- event:
	default:
		n := o.dropped.Add(1)
		slog.Warn(fmt.Sprintf("%s - event buffer full, dropped completion for %s (%d dropped total)", observerLogPrefix, out.ID, n))
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (o *Observer) Dropped() uint64 {
	return o.dropped.Load()
}

// Run publishes queued events until ctx is done, then flushes what is left.
func (o *Observer) Run(ctx context.Context) error {
	for {
		select {
		case event := <-o.queue:
			o.publish(ctx, event)
		case <-ctx.Done():
			o.flush()
			return nil
		}
	}
}

func (o *Observer) flush() {
	for {
		select {
		case event := <-o.queue:
			o.publish(context.Background(), event)
		default:
			return
		}
	}
}

func (o *Observer) publish(ctx context.Context, event *CommandCompletedEvent) {
	if err := o.pub.PublishCompleted(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish completion for %s: %v", observerLogPrefix, event.ID, err))
	}
}

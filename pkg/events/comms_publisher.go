package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/command-bridge/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// CompletedSubject overrides the global completion subject (e.g. from BRIDGE_EVENT_SUBJECT).
	CompletedSubject string
	// LifecycleSubject overrides the lifecycle subject.
	LifecycleSubject string
}

// CommsPublisher publishes bridge events to COMMS subjects.
type CommsPublisher struct {
	nc               *comms.Conn
	completedSubject string
	lifecycleSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	p := &CommsPublisher{
		nc:               nc,
		completedSubject: commsutil.SubjectCompleted,
		lifecycleSubject: commsutil.SubjectLifecycle,
	}
	if opts != nil {
		if opts.CompletedSubject != "" {
			p.completedSubject = opts.CompletedSubject
		}
		if opts.LifecycleSubject != "" {
			p.lifecycleSubject = opts.LifecycleSubject
		}
	}
	return p
}

// PublishCompleted publishes a CommandCompletedEvent to both the per-type
// and global completion subjects.
func (p *CommsPublisher) PublishCompleted(_ context.Context, event *CommandCompletedEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	granularSubject := commsutil.BuildCompletedSubject(p.completedSubject, event.Type)
	if err := p.nc.Publish(granularSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, granularSubject, err))
		return err
	}

	if err := p.nc.Publish(p.completedSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.completedSubject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published completion for %s (%s)", commsPublisherLogPrefix, event.ID, event.Type))
	return nil
}

// PublishLifecycle publishes a LifecycleEvent.
func (p *CommsPublisher) PublishLifecycle(_ context.Context, event *LifecycleEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode lifecycle event: %w", commsPublisherLogPrefix, err)
	}
	if err := p.nc.Publish(p.lifecycleSubject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, p.lifecycleSubject, err))
		return err
	}
	slog.Debug(fmt.Sprintf("%s - Published lifecycle %s", commsPublisherLogPrefix, event.State))
	return nil
}

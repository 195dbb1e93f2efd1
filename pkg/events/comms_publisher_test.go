package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/command-bridge/internal/commstest"
)

func subscribeCompleted(t *testing.T, nc *comms.Conn, subject string) chan *CommandCompletedEvent {
	t.Helper()
	received := make(chan *CommandCompletedEvent, 1)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event CommandCompletedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("events:comms_publisher_test - failed to unmarshal: %v", err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_test - failed to subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	return received
}

func TestCommsPublisher_PublishCompleted_BothSubjects(t *testing.T) {
	nc, _ := commstest.Start(t)
	publisher := NewCommsPublisher(nc, nil)

	granular := subscribeCompleted(t, nc, "bridge.command.completed.manage_editor")
	global := subscribeCompleted(t, nc, "bridge.command.completed")

	event := &CommandCompletedEvent{
		ID:        "cmd-1",
		Type:      "manage_editor",
		Status:    "success",
		Timestamp: "2025-01-01T00:00:00Z",
	}
	if err := publisher.PublishCompleted(context.Background(), event); err != nil {
		t.Fatalf("events:comms_publisher_test - PublishCompleted failed: %v", err)
	}
	nc.Flush()

	for _, ch := range []struct {
		name string
		ch   chan *CommandCompletedEvent
	}{
		{"granular", granular},
		{"global", global},
	} {
		select {
		case got := <-ch.ch:
			if got.ID != "cmd-1" || got.Type != "manage_editor" {
				t.Errorf("events:comms_publisher_test - %s event = %+v", ch.name, got)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("events:comms_publisher_test - timeout waiting for %s event", ch.name)
		}
	}
}

func TestCommsPublisher_CustomSubjects(t *testing.T) {
	nc, _ := commstest.Start(t)
	publisher := NewCommsPublisher(nc, &CommsPublisherOpts{
		CompletedSubject: "editor.done",
		LifecycleSubject: "editor.lifecycle",
	})

	granular := subscribeCompleted(t, nc, "editor.done.noop_echo")

	lifecycle := make(chan *LifecycleEvent, 1)
	sub, err := nc.Subscribe("editor.lifecycle", func(msg *comms.Msg) {
		var event LifecycleEvent
		if err := json.Unmarshal(msg.Data, &event); err == nil {
			lifecycle <- &event
		}
	})
	if err != nil {
		t.Fatalf("events:comms_publisher_test - failed to subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := publisher.PublishCompleted(context.Background(), &CommandCompletedEvent{ID: "x", Type: "noop_echo"}); err != nil {
		t.Fatalf("events:comms_publisher_test - PublishCompleted failed: %v", err)
	}
	if err := publisher.PublishLifecycle(context.Background(), &LifecycleEvent{State: LifecycleStarted, Port: 6400}); err != nil {
		t.Fatalf("events:comms_publisher_test - PublishLifecycle failed: %v", err)
	}
	nc.Flush()

	select {
	case got := <-granular:
		if got.ID != "x" {
			t.Errorf("events:comms_publisher_test - granular id = %s", got.ID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_publisher_test - timeout waiting for custom granular event")
	}

	select {
	case got := <-lifecycle:
		if got.State != LifecycleStarted || got.Port != 6400 {
			t.Errorf("events:comms_publisher_test - lifecycle = %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("events:comms_publisher_test - timeout waiting for lifecycle event")
	}
}

func TestCommsPublisher_ClosedConnection(t *testing.T) {
	nc, _ := commstest.Start(t)
	publisher := NewCommsPublisher(nc, nil)
	nc.Close()

	if err := publisher.PublishCompleted(context.Background(), &CommandCompletedEvent{ID: "x", Type: "t"}); err == nil {
		t.Error("events:comms_publisher_test - expected error on closed connection")
	}
}

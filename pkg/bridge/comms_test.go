package bridge

import (
	"testing"
	"time"

	"github.com/morezero/command-bridge/internal/commstest"
	"github.com/morezero/command-bridge/pkg/protocol"
)

const commsTestPrefix = "bridge:comms_test"

func TestServeComms_RequestReply(t *testing.T) {
	nc, _ := commstest.Start(t)
	b, _ := startBridge(t, true)

	sub, err := b.ServeComms(nc, "")
	if err != nil {
		t.Fatalf("%s - ServeComms: %v", commsTestPrefix, err)
	}
	defer sub.Unsubscribe()

	msg, err := nc.Request("bridge.commands", []byte(`{"type":"noop_echo","parameters":{"from":"comms"}}`), 3*time.Second)
	if err != nil {
		t.Fatalf("%s - request: %v", commsTestPrefix, err)
	}
	env := mustEnvelope(t, string(msg.Data))
	data, _ := env.Data.(map[string]interface{})
	if env.Status != protocol.StatusSuccess || data["from"] != "comms" {
		t.Errorf("%s - reply = %s", commsTestPrefix, msg.Data)
	}

	msg, err = nc.Request("bridge.commands", []byte("ping"), 3*time.Second)
	if err != nil {
		t.Fatalf("%s - ping request: %v", commsTestPrefix, err)
	}
	if string(msg.Data) != protocol.PongJSON {
		t.Errorf("%s - ping reply = %s", commsTestPrefix, msg.Data)
	}
}

func TestServeComms_CustomSubjectUnknownType(t *testing.T) {
	nc, _ := commstest.Start(t)
	b, _ := startBridge(t, true)

	sub, err := b.ServeComms(nc, "editor.commands")
	if err != nil {
		t.Fatalf("%s - ServeComms: %v", commsTestPrefix, err)
	}
	defer sub.Unsubscribe()

	msg, err := nc.Request("editor.commands", []byte(`{"type":"nope"}`), 3*time.Second)
	if err != nil {
		t.Fatalf("%s - request: %v", commsTestPrefix, err)
	}
	if env := mustEnvelope(t, string(msg.Data)); env.Message != "Unknown command type: nope" {
		t.Errorf("%s - reply = %s", commsTestPrefix, msg.Data)
	}
}

func TestServeComms_StopAnswersQueuedRequest(t *testing.T) {
	nc, _ := commstest.Start(t)
	b, _ := startBridge(t, false)

	sub, err := b.ServeComms(nc, "")
	if err != nil {
		t.Fatalf("%s - ServeComms: %v", commsTestPrefix, err)
	}
	defer sub.Unsubscribe()

	type reply struct {
		data string
		err  error
	}
	got := make(chan reply, 1)
	go func() {
		msg, err := nc.Request("bridge.commands", []byte(`{"type":"noop_echo"}`), 3*time.Second)
		if err != nil {
			got <- reply{err: err}
			return
		}
		got <- reply{data: string(msg.Data)}
	}()
	waitPending(t, b, 1)
	b.Stop()

	r := <-got
	if r.err != nil {
		t.Fatalf("%s - queued request got no reply: %v", commsTestPrefix, r.err)
	}
	if env := mustEnvelope(t, r.data); env.Message != "Bridge stopped" {
		t.Errorf("%s - reply = %s", commsTestPrefix, r.data)
	}
}

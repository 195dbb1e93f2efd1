package bridge

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/command-bridge/pkg/commsutil"
)

const commsLogPrefix = "bridge:comms"

// ServeComms answers COMMS requests on subject through the same queue as TCP
// clients, so they run on the host tick too. Each message is served on its own
// goroutine. Unsubscribe the returned subscription to stop.
func (b *Bridge) ServeComms(nc *comms.Conn, subject string) (*comms.Subscription, error) {
	if subject == "" {
		subject = commsutil.SubjectCommands
	}
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		go b.serveMsg(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", commsLogPrefix, subject, err)
	}
	slog.Info(fmt.Sprintf("%s - Serving commands on COMMS subject %s", commsLogPrefix, subject))
	return sub, nil
}

func (b *Bridge) serveMsg(msg *comms.Msg) {
	resp, err := b.Submit(b.runContext(), string(msg.Data))
	if err != nil {
		slog.Debug(fmt.Sprintf("%s - request on %s abandoned: %v", commsLogPrefix, msg.Subject, err))
		return
	}
	if err := commsutil.ReplyText(msg, resp); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to reply on %s: %v", commsLogPrefix, msg.Subject, err))
	}
}

package commsutil

import (
	"encoding/json"

	comms "github.com/nats-io/nats.go"
)

// EncodePayload serializes a value to JSON bytes.
func EncodePayload(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// ReplyText answers a request message with an already-encoded envelope.
// Messages without a reply subject are ignored.
func ReplyText(msg *comms.Msg, text string) error {
	if msg.Reply == "" {
		return nil
	}
	return msg.Respond([]byte(text))
}

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const logPrefix = "protocol:codec"

// PingText is the literal request that is answered with PongJSON.
const PingText = "ping"

// ReceivedTextLimit is how many characters of a rejected request are echoed back.
const ReceivedTextLimit = 50

// ErrNoCommand is returned when the text is valid JSON but carries no command.
var ErrNoCommand = errors.New("command deserialized to null")

// Command is one decoded request.
type Command struct {
	Type       string          `json:"type"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
	// Protocol is an optional semver constraint the bridge version must satisfy.
	Protocol string `json:"protocol,omitempty"`
}

// legacyParamsKey matches the older "@params" key spelling.
var legacyParamsKey = regexp.MustCompile(`(?i)"@params"[ ]*:`)

// IsPing reports whether the request text is the ping literal.
func IsPing(text string) bool {
	return strings.TrimSpace(text) == PingText
}

// LooksLikeJSON reports whether the trimmed text is bracketed as a JSON object or array.
// It is a shape check only; the decoder reports real syntax errors.
func LooksLikeJSON(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	return (strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) ||
		(strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

// RewriteLegacyKeys rewrites "@params": to "parameters":. It never fails.
func RewriteLegacyKeys(text string) string {
	return legacyParamsKey.ReplaceAllString(text, `"parameters":`)
}

// Truncate returns at most ReceivedTextLimit characters of text, with "..." appended
// when something was cut.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= ReceivedTextLimit {
		return text
	}
	return string(runes[:ReceivedTextLimit]) + "..."
}

// DecodeCommand parses request text (already validated and rewritten) into a Command.
// Missing or null parameters become an empty object; parameters sent as a JSON string
// holding an object are unwrapped.
func DecodeCommand(text string) (*Command, error) {
	var cmd *Command
	if err := json.Unmarshal([]byte(text), &cmd); err != nil {
		return nil, err
	}
	if cmd == nil || cmd.Type == "" {
		return nil, ErrNoCommand
	}
	params, err := normalizeParameters(cmd.Parameters)
	if err != nil {
		return nil, err
	}
	cmd.Parameters = params
	return cmd, nil
}

func normalizeParameters(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}
	if trimmed[0] != '"' {
		return json.RawMessage(trimmed), nil
	}

	var encoded string
	if err := json.Unmarshal(trimmed, &encoded); err != nil {
		return nil, fmt.Errorf("%s - parameters string: %w", logPrefix, err)
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(encoded)) {
		return nil, fmt.Errorf("%s - parameters string is not valid JSON", logPrefix)
	}
	return json.RawMessage(encoded), nil
}

// EncodeCommand serializes a command for sending.
func EncodeCommand(cmdType string, params interface{}) ([]byte, error) {
	var raw json.RawMessage
	switch p := params.(type) {
	case nil:
		raw = json.RawMessage("{}")
	case json.RawMessage:
		raw = p
	case []byte:
		raw = json.RawMessage(p)
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%s - encode parameters: %w", logPrefix, err)
		}
		raw = b
	}
	return json.Marshal(Command{Type: cmdType, Parameters: raw})
}

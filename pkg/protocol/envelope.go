// Package protocol defines the bridge wire format: commands in, envelopes out.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope status discriminators.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// PongJSON is the canned reply to the literal "ping" request.
const PongJSON = `{"status":"success","result":{"message":"pong"}}`

// Envelope is the response sent back for every request. It is either a success
// (Message, optional Data) or an error (Message holds the error text, optional Data).
type Envelope struct {
	Status  string
	Message string
	Data    interface{}
}

// Success builds a success envelope. Pass nil data to omit the "data" key.
func Success(message string, data interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Message: message, Data: data}
}

// Error builds an error envelope. Pass nil data to omit the "data" key.
func Error(message string, data interface{}) Envelope {
	return Envelope{Status: StatusError, Message: message, Data: data}
}

// IsError reports whether the envelope is the error shape.
func (e Envelope) IsError() bool {
	return e.Status == StatusError
}

type successWire struct {
	Status string        `json:"status"`
	Result successResult `json:"result"`
}

type successResult struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type errorWire struct {
	Status string      `json:"status"`
	Error  string      `json:"error"`
	Data   interface{} `json:"data,omitempty"`
}

// MarshalJSON writes one of the two wire shapes.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.IsError() {
		return json.Marshal(errorWire{Status: StatusError, Error: e.Message, Data: e.Data})
	}
	return json.Marshal(successWire{Status: StatusSuccess, Result: successResult{Message: e.Message, Data: e.Data}})
}

// UnmarshalJSON reads either wire shape. Data is decoded as generic JSON.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status string      `json:"status"`
		Error  string      `json:"error"`
		Data   interface{} `json:"data"`
		Result *struct {
			Message string      `json:"message"`
			Data    interface{} `json:"data"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case StatusSuccess:
		*e = Envelope{Status: StatusSuccess}
		if raw.Result != nil {
			e.Message = raw.Result.Message
			e.Data = raw.Result.Data
		}
	case StatusError:
		*e = Envelope{Status: StatusError, Message: raw.Error, Data: raw.Data}
	default:
		return fmt.Errorf("protocol:envelope - unknown status %q", raw.Status)
	}
	return nil
}

// Marshal serializes an envelope to its wire text. A panic raised while
// serializing Data is returned as an error.
func Marshal(e Envelope) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("serialize panicked: %v", r)
		}
	}()
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Encode serializes an envelope to its wire text. Data that cannot be serialized
// is replaced by an error envelope so the caller always gets a valid response.
func Encode(e Envelope) string {
	text, err := Marshal(e)
	if err != nil {
		return Encode(SerializeError(err))
	}
	return text
}

// SerializeError is the envelope sent when a response could not be serialized.
func SerializeError(err error) Envelope {
	return Error("Failed to serialize response", map[string]string{"detail": err.Error()})
}

// ParseEnvelope decodes a wire response.
func ParseEnvelope(text string) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal([]byte(text), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// HandlerError is an error a handler can return to attach detail to the error envelope.
type HandlerError struct {
	Message string
	Detail  interface{}
}

func (e *HandlerError) Error() string {
	return e.Message
}

// NewHandlerError creates a HandlerError.
func NewHandlerError(message string, detail interface{}) *HandlerError {
	return &HandlerError{Message: message, Detail: detail}
}

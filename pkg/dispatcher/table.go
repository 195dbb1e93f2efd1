// Package dispatcher runs queued bridge commands on the host goroutine.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/morezero/command-bridge/pkg/protocol"
)

// Handler performs one command's domain work. It is only ever called from the
// dispatch goroutine, so it may touch host state that is not thread-safe.
type Handler interface {
	Handle(ctx context.Context, params json.RawMessage) (protocol.Envelope, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (protocol.Envelope, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, params json.RawMessage) (protocol.Envelope, error) {
	return f(ctx, params)
}

// Typed wraps a handler that takes a concrete parameter struct. Parameters are
// decoded at invocation time; a decode failure becomes an error envelope.
func Typed[P any](fn func(ctx context.Context, params P) (protocol.Envelope, error)) Handler {
	return HandlerFunc(func(ctx context.Context, raw json.RawMessage) (protocol.Envelope, error) {
		var p P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return protocol.Envelope{}, protocol.NewHandlerError(fmt.Sprintf("Invalid parameters: %v", err), nil)
			}
		}
		return fn(ctx, p)
	})
}

// Table maps command types to handlers. It is fixed at construction and read-only
// afterwards, so lookups need no locking.
type Table struct {
	handlers map[string]Handler
}

// NewTable builds a table from the given registrations. It panics on an empty
// command type or a nil handler, as those are programming errors.
func NewTable(handlers map[string]Handler) *Table {
	t := &Table{handlers: make(map[string]Handler, len(handlers))}
	for name, h := range handlers {
		if name == "" {
			panic("dispatcher: empty command type")
		}
		if h == nil {
			panic(fmt.Sprintf("dispatcher: nil handler for %q", name))
		}
		t.handlers[name] = h
	}
	return t
}

// Lookup returns the handler registered for cmdType.
func (t *Table) Lookup(cmdType string) (Handler, bool) {
	if t == nil {
		return nil, false
	}
	h, ok := t.handlers[cmdType]
	return h, ok
}

// Types returns the registered command types, sorted.
func (t *Table) Types() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered command types.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.handlers)
}

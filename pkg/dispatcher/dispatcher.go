package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/command-bridge/pkg/pending"
	"github.com/morezero/command-bridge/pkg/protocol"
)

const (
	logPrefix  = "dispatcher:dispatch"
	tracerName = "github.com/morezero/command-bridge/pkg/dispatcher"
)

// Dispatcher drains the pending registry and runs each command through the codec
// and the dispatch table. Tick must only be called from the host goroutine.
type Dispatcher struct {
	table    *Table
	pending  *pending.Registry
	observer Observer
	tracer   trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver sets the outcome observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observer = o
	}
}

// WithTracer sets the tracer used for per-command spans.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(table *Table, reg *pending.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{table: table, pending: reg}
	for _, opt := range opts {
		opt(d)
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// Table returns the dispatch table.
func (d *Dispatcher) Table() *Table {
	return d.table
}

// Tick drains every queued command and resolves each one. A failing command never
// stops the rest of the drain. It returns how many commands were processed.
func (d *Dispatcher) Tick(ctx context.Context) int {
	entries := d.pending.Drain()
	start := time.Now()

	for _, e := range entries {
		d.processEntry(ctx, e)
	}

	if to, ok := d.observer.(TickObserver); ok {
		d.safely("tick observer", func() { to.TickCompleted(len(entries), time.Since(start)) })
	}
	if len(entries) > 0 {
		slog.Debug(fmt.Sprintf("%s - tick processed %d commands in %s", logPrefix, len(entries), time.Since(start)))
	}
	return len(entries)
}

// processEntry resolves e exactly once, even when processing panics.
func (d *Dispatcher) processEntry(ctx context.Context, e pending.Entry) {
	resp, outcome := "", Outcome{ID: e.ID}
	func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error(fmt.Sprintf("%s - processing %s panicked: %v", logPrefix, e.ID, r))
				env := protocol.Error(fmt.Sprintf("Error: %v", r), nil)
				resp = protocol.Encode(env)
				outcome.Status, outcome.Error = env.Status, env.Message
				outcome.CompletedAt = time.Now().UTC()
			}
		}()
		resp, outcome = d.Process(ctx, e.ID, e.RawText)
	}()
	e.Completion.Resolve(resp)
	d.notify(ctx, outcome)
}

// Process runs one raw request through validation, decoding and the handler and
// returns the encoded envelope.
func (d *Dispatcher) Process(ctx context.Context, id, raw string) (string, Outcome) {
	start := time.Now()
	out := Outcome{ID: id}

	env := d.evaluate(ctx, raw, &out)
	resp, err := protocol.Marshal(env)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to serialize response id=%s: %v", logPrefix, id, err))
		env = protocol.SerializeError(err)
		resp = protocol.Encode(env)
	}

	out.Status = env.Status
	if env.IsError() {
		out.Error = env.Message
	}
	out.Duration = time.Since(start)
	out.CompletedAt = time.Now().UTC()
	return resp, out
}

func (d *Dispatcher) evaluate(ctx context.Context, raw string, out *Outcome) protocol.Envelope {
	if raw == "" {
		return protocol.Error("Empty command received", nil)
	}

	text := strings.TrimSpace(raw)
	if text == protocol.PingText {
		out.Type = protocol.PingText
		return protocol.Success("pong", nil)
	}

	if !protocol.LooksLikeJSON(text) {
		return protocol.Error("Invalid JSON format", map[string]string{
			"receivedText": protocol.Truncate(text),
		})
	}

	text = protocol.RewriteLegacyKeys(text)
	cmd, err := protocol.DecodeCommand(text)
	if errors.Is(err, protocol.ErrNoCommand) {
		slog.Warn(fmt.Sprintf("%s - command deserialized to null id=%s", logPrefix, out.ID))
		return protocol.Error("Command deserialized to null", map[string]string{
			"details": "The command was valid JSON but could not be deserialized to a Command object",
		})
	}
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to decode command id=%s: %v", logPrefix, out.ID, err))
		return protocol.Error(err.Error(), map[string]string{
			"receivedText": protocol.Truncate(text),
		})
	}
	out.Type = cmd.Type

	if rejected := protocol.CheckProtocol(cmd.Protocol); rejected != nil {
		return *rejected
	}

	handler, ok := d.table.Lookup(cmd.Type)
	if !ok {
		slog.Warn(fmt.Sprintf("%s - unknown command type %q id=%s", logPrefix, cmd.Type, out.ID))
		return protocol.Error("Unknown command type: "+cmd.Type, nil)
	}

	slog.Debug(fmt.Sprintf("%s - type=%s id=%s", logPrefix, cmd.Type, out.ID))
	return d.invoke(ctx, cmd, handler)
}

// invoke calls the handler. Errors and panics become error envelopes here and go
// no further.
func (d *Dispatcher) invoke(ctx context.Context, cmd *protocol.Command, h Handler) (env protocol.Envelope) {
	ctx, span := d.tracer.Start(ctx, "bridge.dispatch",
		trace.WithAttributes(attribute.String("bridge.command.type", cmd.Type)))
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - handler %s panicked: %v", logPrefix, cmd.Type, r))
			env = protocol.Error(fmt.Sprintf("Error: %v", r), map[string]string{
				"stack": string(debug.Stack()),
			})
		}
		span.SetAttributes(attribute.String("bridge.command.status", env.Status))
		if env.IsError() {
			span.SetStatus(codes.Error, env.Message)
		}
		span.End()
	}()

	result, err := h.Handle(ctx, cmd.Parameters)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - handler %s failed: %v", logPrefix, cmd.Type, err))
		return errorEnvelope(err)
	}
	if result.Status == "" {
		result.Status = protocol.StatusSuccess
	}
	return result
}

func errorEnvelope(err error) protocol.Envelope {
	var he *protocol.HandlerError
	if errors.As(err, &he) {
		return protocol.Error(he.Message, he.Detail)
	}
	return protocol.Error(err.Error(), nil)
}

func (d *Dispatcher) notify(ctx context.Context, o Outcome) {
	if d.observer == nil {
		return
	}
	d.safely("observer", func() { d.observer.CommandCompleted(ctx, o) })
}

func (d *Dispatcher) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - %s panicked: %v", logPrefix, what, r))
		}
	}()
	fn()
}

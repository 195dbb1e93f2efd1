// Package bridge accepts controller connections and funnels their commands onto
// the host's single dispatch goroutine.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/morezero/command-bridge/pkg/dispatcher"
	"github.com/morezero/command-bridge/pkg/events"
	"github.com/morezero/command-bridge/pkg/metrics"
	"github.com/morezero/command-bridge/pkg/pending"
	"github.com/morezero/command-bridge/pkg/protocol"
)

const logPrefix = "bridge:bridge"

// Defaults used when Config fields are zero.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 6400
	DefaultReadTimeout = 60 * time.Second
	DefaultBufferSize  = 8192
	DefaultMaxPending  = 1024
)

// Host is the application that owns the dispatch goroutine. The bridge registers
// one tick hook while running.
type Host interface {
	OnTick(fn func()) (unregister func())
}

// Config holds the listener settings.
type Config struct {
	Host string
	// Port 0 lets the OS pick a free port; a negative value means DefaultPort.
	Port        int
	ReadTimeout time.Duration
	BufferSize  int
	// MaxPending caps queued commands; a negative value means unbounded.
	MaxPending int
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port < 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.MaxPending == 0 {
		c.MaxPending = DefaultMaxPending
	}
	if c.MaxPending < 0 {
		c.MaxPending = 0
	}
	return c
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithObserver adds an outcome observer. It may be given more than once.
func WithObserver(o dispatcher.Observer) Option {
	return func(b *Bridge) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// WithMetrics records bridge metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithLifecycle publishes started and stopped events.
func WithLifecycle(p events.EventPublisher) Option {
	return func(b *Bridge) {
		b.lifecycle = p
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(b *Bridge) {
		b.tracer = t
	}
}

// Status is a point-in-time view of the bridge for operators.
type Status struct {
	Running         bool     `json:"running"`
	Host            string   `json:"host"`
	Port            int      `json:"port"`
	Pending         int      `json:"pending"`
	MaxPending      int      `json:"maxPending"`
	Connections     int      `json:"connections"`
	ProtocolVersion string   `json:"protocolVersion"`
	Commands        []string `json:"commands"`
}

// Bridge owns the listener, the pending registry and the dispatcher.
type Bridge struct {
	cfg       Config
	host      Host
	table     *dispatcher.Table
	registry  *pending.Registry
	disp      *dispatcher.Dispatcher
	metrics   *metrics.Metrics
	lifecycle events.EventPublisher
	observers dispatcher.Observers
	tracer    trace.Tracer

	mu         sync.Mutex
	running    bool
	listener   net.Listener
	unregister func()
	ctx        context.Context
	cancel     context.CancelFunc
	conns      map[net.Conn]struct{}
	wg         sync.WaitGroup
}

// New creates a stopped bridge. table holds every command the host supports.
func New(host Host, table *dispatcher.Table, cfg Config, opts ...Option) *Bridge {
	cfg = cfg.withDefaults()
	b := &Bridge{
		cfg:       cfg,
		host:      host,
		table:     table,
		registry:  pending.NewRegistry(cfg.MaxPending),
		lifecycle: &events.NoOpPublisher{},
		conns:     make(map[net.Conn]struct{}),
		ctx:       context.Background(),
	}
	for _, opt := range opts {
		opt(b)
	}

	obs := dispatcher.Observers{}
	if b.metrics != nil {
		obs = append(obs, b.metrics)
	}
	obs = append(obs, b.observers...)

	dopts := []dispatcher.Option{dispatcher.WithObserver(obs)}
	if b.tracer != nil {
		dopts = append(dopts, dispatcher.WithTracer(b.tracer))
	}
	b.disp = dispatcher.NewDispatcher(table, b.registry, dopts...)
	return b
}

// Start binds the listener and registers the dispatch hook. Starting a running
// bridge stops it first. A bind failure leaves the bridge stopped.
func (b *Bridge) Start() error {
	if b.IsRunning() {
		b.Stop()
	}

	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}

	addr := b.cfg.Address()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		b.mu.Unlock()
		slog.Error(fmt.Sprintf("%s - failed to bind %s: %v", logPrefix, addr, err))
		return fmt.Errorf("%s - failed to bind %s: %w", logPrefix, addr, err)
	}

	b.registry.Reopen()
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.listener = ln
	b.running = true
	b.unregister = b.host.OnTick(b.tick)

	b.wg.Add(1)
	go b.acceptLoop(b.ctx, ln)
	b.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - Bridge listening on %s", logPrefix, ln.Addr()))
	b.publishLifecycle(events.LifecycleStarted, ln.Addr())
	return nil
}

// Stop closes the listener and every connection, unregisters the dispatch hook and
// answers still-queued commands with an error. Stopping a stopped bridge does nothing.
func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	ln := b.listener
	b.listener = nil
	unregister := b.unregister
	b.unregister = nil
	cancel := b.cancel
	conns := make([]net.Conn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()

	// Queued commands are answered before the run context ends, so waiters
	// see the reply instead of the cancellation.
	if n := b.registry.Close(protocol.Encode(protocol.Error("Bridge stopped", nil))); n > 0 {
		slog.Warn(fmt.Sprintf("%s - %d queued commands answered with Bridge stopped", logPrefix, n))
	}
	cancel()

	addr := ln.Addr()
	if unregister != nil {
		unregister()
	}
	if err := ln.Close(); err != nil {
		slog.Warn(fmt.Sprintf("%s - error closing listener: %v", logPrefix, err))
	}
	for _, c := range conns {
		_ = c.Close()
	}
	b.wg.Wait()
	b.metrics.SetPending(0)

	slog.Info(fmt.Sprintf("%s - Bridge stopped", logPrefix))
	b.publishLifecycle(events.LifecycleStopped, addr)
}

// IsRunning reports whether the listener is bound.
func (b *Bridge) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Addr returns the bound address, or nil when stopped.
func (b *Bridge) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Status reports the bridge state. Port is the bound port while running.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	st := Status{
		Running:         b.running,
		Host:            b.cfg.Host,
		Port:            b.cfg.Port,
		Connections:     len(b.conns),
		ProtocolVersion: protocol.Version,
		Commands:        b.table.Types(),
		MaxPending:      b.registry.Limit(),
	}
	if b.listener != nil {
		if tcp, ok := b.listener.Addr().(*net.TCPAddr); ok {
			st.Port = tcp.Port
		}
	}
	b.mu.Unlock()
	st.Pending = b.registry.Len()
	return st
}

// tick runs on the host goroutine.
func (b *Bridge) tick() {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()

	b.disp.Tick(ctx)
	b.metrics.SetPending(b.registry.Len())
}

func (b *Bridge) runContext() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

func (b *Bridge) publishLifecycle(state string, addr net.Addr) {
	event := &events.LifecycleEvent{
		State:           state,
		Host:            b.cfg.Host,
		Port:            b.cfg.Port,
		ProtocolVersion: protocol.Version,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		event.Port = tcp.Port
	}
	if err := b.lifecycle.PublishLifecycle(context.Background(), event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish lifecycle %s: %v", logPrefix, state, err))
	}
}

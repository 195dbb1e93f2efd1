package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const listenerLogPrefix = "bridge:listener"

const keepAlivePeriod = 30 * time.Second

// acceptLoop hands every accepted connection to its own handler goroutine. Accept
// errors are logged and the loop keeps going until the bridge stops.
func (b *Bridge) acceptLoop(ctx context.Context, ln net.Listener) {
	defer b.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				slog.Debug(fmt.Sprintf("%s - accept loop exiting", listenerLogPrefix))
				return
			}
			slog.Warn(fmt.Sprintf("%s - accept failed: %v", listenerLogPrefix, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetKeepAlive(true)
			_ = tcp.SetKeepAlivePeriod(keepAlivePeriod)
		}
		if !b.track(conn) {
			_ = conn.Close()
			return
		}
		go b.handleConn(ctx, conn)
	}
}

// track registers conn and reserves its slot in the wait group. It reports false
// once the bridge has stopped.
func (b *Bridge) track(conn net.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return false
	}
	b.conns[conn] = struct{}{}
	b.wg.Add(1)
	b.metrics.ConnectionOpened()
	return true
}

func (b *Bridge) untrack(conn net.Conn) {
	b.mu.Lock()
	delete(b.conns, conn)
	b.mu.Unlock()
	b.metrics.ConnectionClosed()
}

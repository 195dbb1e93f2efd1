package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nats-io/nuid"

	"github.com/morezero/command-bridge/pkg/pending"
	"github.com/morezero/command-bridge/pkg/protocol"
)

const connLogPrefix = "bridge:conn"

// handleConn serves one client. Each read is one request; the response is written
// back before the next read, so a connection is strictly request/response.
func (b *Bridge) handleConn(ctx context.Context, conn net.Conn) {
	defer b.wg.Done()
	defer b.untrack(conn)
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	slog.Debug(fmt.Sprintf("%s - client connected %s", connLogPrefix, remote))

	buf := make([]byte, b.cfg.BufferSize)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout)); err != nil {
			slog.Debug(fmt.Sprintf("%s - set read deadline for %s: %v", connLogPrefix, remote, err))
		}
		n, err := conn.Read(buf)
		if n == 0 {
			logConnEnd(remote, err)
			return
		}

		text := strings.ToValidUTF8(string(buf[:n]), "\uFFFD")
		resp, werr := b.Submit(ctx, text)
		if werr != nil {
			slog.Debug(fmt.Sprintf("%s - %s abandoned waiting for response: %v", connLogPrefix, remote, werr))
			return
		}

		if err := conn.SetWriteDeadline(time.Now().Add(b.cfg.ReadTimeout)); err != nil {
			slog.Debug(fmt.Sprintf("%s - set write deadline for %s: %v", connLogPrefix, remote, err))
		}
		if _, err := conn.Write([]byte(resp)); err != nil {
			slog.Warn(fmt.Sprintf("%s - write to %s failed: %v", connLogPrefix, remote, err))
			return
		}
		if err != nil {
			logConnEnd(remote, err)
			return
		}
	}
}

func logConnEnd(remote string, err error) {
	var ne net.Error
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		slog.Debug(fmt.Sprintf("%s - client %s disconnected", connLogPrefix, remote))
	case errors.As(err, &ne) && ne.Timeout():
		slog.Info(fmt.Sprintf("%s - client %s timed out", connLogPrefix, remote))
	default:
		slog.Warn(fmt.Sprintf("%s - read from %s failed: %v", connLogPrefix, remote, err))
	}
}

// Submit queues one raw request for the next tick and waits for its response.
// Pings are answered immediately. The error is non-nil only when ctx ends first.
func (b *Bridge) Submit(ctx context.Context, raw string) (string, error) {
	if protocol.IsPing(raw) {
		b.metrics.Ping()
		return protocol.PongJSON, nil
	}
	if !b.IsRunning() {
		b.metrics.Rejected("stopped")
		return protocol.Encode(protocol.Error("Bridge is not running", nil)), nil
	}

	id := nuid.Next()
	completion, err := b.registry.Insert(id, raw)
	switch {
	case errors.Is(err, pending.ErrFull):
		b.metrics.Rejected("queue_full")
		slog.Warn(fmt.Sprintf("%s - queue full (limit %d), rejecting command", connLogPrefix, b.registry.Limit()))
		return protocol.Encode(protocol.Error("Command queue full", map[string]int{"limit": b.registry.Limit()})), nil
	case errors.Is(err, pending.ErrClosed):
		b.metrics.Rejected("stopped")
		return protocol.Encode(protocol.Error("Bridge stopped", nil)), nil
	case err != nil:
		return "", fmt.Errorf("%s - queue command: %w", connLogPrefix, err)
	}
	b.metrics.SetPending(b.registry.Len())

	return completion.Wait(ctx)
}

// Package client talks to a running bridge over TCP.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/morezero/command-bridge/pkg/protocol"
)

const logPrefix = "client:client"

// DefaultTimeout bounds each request/response exchange.
const DefaultTimeout = 60 * time.Second

const readChunk = 8192

// ErrClosed is returned after Close.
var ErrClosed = errors.New("client: connection closed")

// Client is one bridge connection. Requests are serialized: the bridge reads one
// request per read and answers it before reading the next.
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to addr. A non-positive timeout uses DefaultTimeout.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to %s: %w", logPrefix, addr, err)
	}
	slog.Debug(fmt.Sprintf("%s - Connected to %s", logPrefix, addr))
	return &Client{conn: conn, timeout: timeout}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SendRaw writes text as one request and returns the raw response. It keeps
// reading until the bytes received form one complete JSON value.
func (c *Client) SendRaw(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return "", ErrClosed
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("%s - set deadline: %w", logPrefix, err)
	}

	if _, err := c.conn.Write([]byte(text)); err != nil {
		return "", fmt.Errorf("%s - write request: %w", logPrefix, err)
	}

	var acc []byte
	buf := make([]byte, readChunk)
	for {
		n, err := c.conn.Read(buf)
		acc = append(acc, buf[:n]...)
		if n > 0 && json.Valid(acc) {
			slog.Debug(fmt.Sprintf("%s - Received complete response (%d bytes)", logPrefix, len(acc)))
			return string(acc), nil
		}
		if err != nil {
			if len(acc) == 0 {
				return "", fmt.Errorf("%s - connection closed before receiving data: %w", logPrefix, err)
			}
			return "", fmt.Errorf("%s - incomplete response after %d bytes: %w", logPrefix, len(acc), err)
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
}

// Send encodes a command, sends it and decodes the envelope. An error envelope is
// returned as a value, not as an error.
func (c *Client) Send(ctx context.Context, cmdType string, params interface{}) (*protocol.Envelope, error) {
	req, err := protocol.EncodeCommand(cmdType, params)
	if err != nil {
		return nil, err
	}
	resp, err := c.SendRaw(ctx, string(req))
	if err != nil {
		return nil, err
	}
	env, err := protocol.ParseEnvelope(resp)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid response: %w", logPrefix, err)
	}
	return env, nil
}

// Ping checks the bridge answers the ping literal.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.SendRaw(ctx, protocol.PingText)
	if err != nil {
		return err
	}
	env, err := protocol.ParseEnvelope(resp)
	if err != nil {
		return fmt.Errorf("%s - invalid ping response: %w", logPrefix, err)
	}
	if env.IsError() || env.Message != "pong" {
		return fmt.Errorf("%s - unexpected ping response: %s", logPrefix, resp)
	}
	return nil
}

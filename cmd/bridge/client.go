package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/morezero/command-bridge/internal/config"
	"github.com/morezero/command-bridge/pkg/client"
	"github.com/morezero/command-bridge/pkg/protocol"
)

// clientFlags are shared by the commands that talk to a running bridge.
type clientFlags struct {
	addr    string
	timeout time.Duration
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "bridge address (default BRIDGE_HOST:BRIDGE_PORT)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", client.DefaultTimeout, "response timeout")
}

func (f *clientFlags) dial(ctx context.Context) (*client.Client, error) {
	addr := f.addr
	if addr == "" {
		var err error
		if addr, err = defaultBridgeAddr(); err != nil {
			return nil, err
		}
	}
	return client.Dial(ctx, addr, f.timeout)
}

func sendCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "send <type> [parameters-json]",
		Short: "Send one command and print the response envelope",
		Example: `  bridge send manage_editor '{"action":"get_state"}'
  bridge send noop_echo`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("parameters must be valid JSON")
				}
				params = json.RawMessage(args[1])
			}

			ctx := cmd.Context()
			c, err := flags.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			env, err := c.Send(ctx, args[0], params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), protocol.Encode(*env))
			if env.IsError() {
				return fmt.Errorf("command %s failed: %s", args[0], env.Message)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func pingCmd() *cobra.Command {
	var flags clientFlags
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a bridge answers on its port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := flags.dial(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			start := time.Now()
			if err := c.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pong (%s)\n", time.Since(start).Round(time.Microsecond))
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func statusCmd() *cobra.Command {
	var (
		statusURL string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the running bridge status from the HTTP status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if statusURL == "" {
				cfg, err := config.LoadConfig()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if cfg.StatusHTTPAddr == "" {
					return fmt.Errorf("STATUS_HTTP_ADDR is empty; pass --url")
				}
				statusURL = "http://" + cfg.StatusHTTPAddr + "/status"
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
			if err != nil {
				return fmt.Errorf("build request: %w", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("get %s: %w", statusURL, err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read status: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("get %s: %s", statusURL, resp.Status)
			}
			var out bytes.Buffer
			if err := json.Indent(&out, body, "", "  "); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&statusURL, "url", "", "status URL (default http://STATUS_HTTP_ADDR/status)")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

// Package main is the entrypoint for command-bridge (binary name "bridge").
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/morezero/command-bridge/internal/config"
	"github.com/morezero/command-bridge/internal/server"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "bridge: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Loopback command bridge for a single-threaded host",
		Long: `bridge accepts JSON commands on a loopback TCP port and runs them on the
host's tick. Running it with no command starts the demo host (same as "serve").

Environment: BRIDGE_HOST, BRIDGE_PORT, STATUS_HTTP_ADDR, COMMS_URL, DATABASE_URL,
MIGRATION_PATH, LOG_LEVEL. See README.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		sendCmd(),
		pingCmd(),
		statusCmd(),
		migrateCmd(),
		ensureDBCmd(),
		versionCmd(),
	)
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the demo host, bridge listener and status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bridge %s (commit %s)\n", version, commit)
		},
	}
}

// defaultBridgeAddr returns the bridge address from BRIDGE_HOST and BRIDGE_PORT.
func defaultBridgeAddr() (string, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return net.JoinHostPort(cfg.BridgeHost, strconv.Itoa(cfg.BridgePort)), nil
}

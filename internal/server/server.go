// Package server orchestrates all components: demo host loop, bridge listener, COMMS ingress, journal, HTTP status.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	comms "github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/morezero/command-bridge/internal/config"
	"github.com/morezero/command-bridge/pkg/bridge"
	"github.com/morezero/command-bridge/pkg/commsutil"
	"github.com/morezero/command-bridge/pkg/editor"
	"github.com/morezero/command-bridge/pkg/events"
	"github.com/morezero/command-bridge/pkg/hostloop"
	"github.com/morezero/command-bridge/pkg/journal"
	"github.com/morezero/command-bridge/pkg/metrics"
)

const logPrefix = "server:server"

const (
	eventBuffer     = 256
	shutdownTimeout = 10 * time.Second
)

// statusSource is the part of the bridge the HTTP handlers read.
type statusSource interface {
	Status() bridge.Status
}

// commandLog is the read side of the command journal.
type commandLog interface {
	RecentCommands(ctx context.Context, cmdType string, limit int) ([]journal.CommandRecord, error)
}

// pinger checks database reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server is the command-bridge orchestrator.
type Server struct {
	cfg        *config.Config
	bridge     statusSource
	journal    commandLog
	db         pinger
	gatherer   prometheus.Gatherer
	httpServer *http.Server
}

// Run starts the demo host and the bridge, blocks until a shutdown signal, then cleans up.
func Run() error {
	// Setup structured logging
	var logLevel slog.Level
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("%s - failed to load config: %w", logPrefix, err)
	}

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	if err := cfg.ValidateForServe(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Starting command-bridge", logPrefix))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	sinks := newSinkGroup()
	defer sinks.Stop()

	// Step 1: Demo host and its command table
	loop := hostloop.New(cfg.TickInterval)
	ed := editor.New()
	table := editor.Table(ed)

	// Step 2: Metrics
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metrics.Config{Registry: promReg})

	s := &Server{cfg: cfg, gatherer: promReg}
	opts := []bridge.Option{bridge.WithMetrics(m)}

	// Step 3: COMMS events (optional)
	var nc *comms.Conn
	if cfg.CommsEnabled() {
		nc, err = commsutil.Connect(cfg.COMMSURL, cfg.COMMSName, commsOptions(cfg))
		if err != nil {
			return fmt.Errorf("%s - failed to connect to COMMS: %w", logPrefix, err)
		}
		defer nc.Close()

		publisher := events.NewCommsPublisher(nc, &events.CommsPublisherOpts{CompletedSubject: cfg.EventSubject})
		observer := events.NewObserver(publisher, eventBuffer)
		sinks.Go(observer)
		opts = append(opts, bridge.WithObserver(observer), bridge.WithLifecycle(publisher))
		slog.Info(fmt.Sprintf("%s - Connected to COMMS at %s", logPrefix, cfg.COMMSURL))
	}

	// Step 4: Command journal (optional)
	var pool *pgxpool.Pool
	if cfg.JournalEnabled() {
		pool, err = openJournal(ctx, cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		repo := journal.NewRepository(pool)
		writer := journal.NewWriter(repo, cfg.JournalBuffer)
		sinks.Go(writer)
		opts = append(opts, bridge.WithObserver(writer))
		s.journal = repo
		s.db = pool
	}

	// Step 5: Bridge listener
	b := bridge.New(loop, table, bridge.Config{
		Host:        cfg.BridgeHost,
		Port:        cfg.BridgePort,
		ReadTimeout: cfg.ReadTimeout,
		BufferSize:  cfg.BufferSize,
		MaxPending:  cfg.BridgeMaxPending(),
	}, opts...)
	s.bridge = b

	if err := b.Start(); err != nil {
		return err
	}
	// Quitting the host stops the bridge, so queued commands are answered.
	loop.OnQuit(b.Stop)

	var sub *comms.Subscription
	if nc != nil {
		sub, err = b.ServeComms(nc, cfg.CommandSubject)
		if err != nil {
			b.Stop()
			return err
		}
	}

	// Step 6: HTTP status server
	if cfg.StatusHTTPAddr != "" {
		s.httpServer = &http.Server{
			Addr:              cfg.StatusHTTPAddr,
			Handler:           s.router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			slog.Info(fmt.Sprintf("%s - HTTP status server listening on %s", logPrefix, cfg.StatusHTTPAddr))
			if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s - HTTP server error: %w", logPrefix, err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return s.httpServer.Shutdown(shutdownCtx)
		})
	}

	// Step 7: Host loop owns the dispatch goroutine until shutdown
	g.Go(func() error { return serveLoop(gctx, loop, sinks) })

	slog.Info(fmt.Sprintf("%s - command-bridge is ready", logPrefix))

	<-gctx.Done()
	slog.Info(fmt.Sprintf("%s - Shutting down", logPrefix))

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn(fmt.Sprintf("%s - failed to unsubscribe: %v", logPrefix, err))
		}
	}

	err = g.Wait()
	if nc != nil {
		if derr := nc.Drain(); derr != nil {
			slog.Warn(fmt.Sprintf("%s - COMMS drain: %v", logPrefix, derr))
		}
	}
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("%s - Shutdown complete", logPrefix))
	return nil
}

func commsOptions(cfg *config.Config) commsutil.ConnectOptions {
	return commsutil.ConnectOptions{
		Timeout:       cfg.COMMSTimeout,
		ReconnectWait: cfg.COMMSReconnectWait,
		MaxReconnects: cfg.COMMSMaxReconnects,
	}
}

// openJournal connects to the journal database and applies migrations when enabled.
func openJournal(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := journal.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to connect to database: %w", logPrefix, err)
	}
	if !cfg.RunMigrations {
		return pool, nil
	}
	files, err := journal.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to load migrations: %w", logPrefix, err)
	}
	if err := journal.RunMigrations(ctx, pool, files); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to run migrations: %w", logPrefix, err)
	}
	return pool, nil
}

package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/morezero/command-bridge/pkg/hostloop"
)

// sink consumes dispatch outcomes until its context ends, then flushes.
type sink interface {
	Run(ctx context.Context) error
}

// sinkGroup runs the outcome sinks on their own context so they outlive the
// host loop's shutdown.
type sinkGroup struct {
	g      errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc
}

func newSinkGroup() *sinkGroup {
	ctx, cancel := context.WithCancel(context.Background())
	return &sinkGroup{ctx: ctx, cancel: cancel}
}

func (s *sinkGroup) Go(k sink) {
	s.g.Go(func() error { return k.Run(s.ctx) })
}

// Stop ends every sink and waits for their flush. Safe to call more than once.
func (s *sinkGroup) Stop() error {
	s.cancel()
	return s.g.Wait()
}

// serveLoop runs the host loop until ctx ends. Sinks stop only after the loop's
// quit hooks ran, so outcomes of the last tick and of stopping the bridge are flushed.
func serveLoop(ctx context.Context, loop *hostloop.Loop, sinks *sinkGroup) error {
	err := loop.Run(ctx)
	if serr := sinks.Stop(); err == nil {
		err = serr
	}
	return err
}

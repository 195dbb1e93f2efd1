package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/morezero/command-bridge/pkg/dispatcher"
)

const writerLogPrefix = "journal:writer"

// Store is the write side of the journal.
type Store interface {
	InsertCommand(ctx context.Context, rec *CommandRecord) error
}

// Writer records dispatch outcomes asynchronously. CommandCompleted runs on the
// host tick and only enqueues; records are dropped when the buffer is full.
type Writer struct {
	store        Store
	queue        chan *CommandRecord
	writeTimeout time.Duration
	written      atomic.Uint64
	dropped      atomic.Uint64
	failed       atomic.Uint64
}

// NewWriter creates a Writer with the given buffer size.
func NewWriter(store Store, buffer int) *Writer {
	if buffer <= 0 {
		buffer = 256
	}
	return &Writer{
		store:        store,
		queue:        make(chan *CommandRecord, buffer),
		writeTimeout: 5 * time.Second,
	}
}

// CommandCompleted implements dispatcher.Observer.
func (w *Writer) CommandCompleted(_ context.Context, o dispatcher.Outcome) {
	rec := &CommandRecord{
		ID:          o.ID,
		Type:        o.Type,
		Status:      o.Status,
		Error:       o.Error,
		DurationMs:  float64(o.Duration.Microseconds()) / 1000,
		CompletedAt: o.CompletedAt,
	}
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now().UTC()
	}
	select {
	case w.queue <- rec:
	default:
		n := w.dropped.Add(1)
		slog.Warn(fmt.Sprintf("%s - journal buffer full, dropped %s (%d dropped total)", writerLogPrefix, o.ID, n))
	}
}

// Run writes queued records until ctx is done, then flushes what is left.
func (w *Writer) Run(ctx context.Context) error {
	slog.Info(fmt.Sprintf("%s - Journal writer started (buffer=%d)", writerLogPrefix, cap(w.queue)))
	for {
		select {
		case rec := <-w.queue:
			w.write(ctx, rec)
		case <-ctx.Done():
			w.flush()
			slog.Info(fmt.Sprintf("%s - Journal writer stopped (written=%d dropped=%d failed=%d)",
				writerLogPrefix, w.written.Load(), w.dropped.Load(), w.failed.Load()))
			return nil
		}
	}
}

func (w *Writer) flush() {
	for {
		select {
		case rec := <-w.queue:
			w.write(context.Background(), rec)
		default:
			return
		}
	}
}

func (w *Writer) write(ctx context.Context, rec *CommandRecord) {
	ctx, cancel := context.WithTimeout(ctx, w.writeTimeout)
	defer cancel()
	if err := w.store.InsertCommand(ctx, rec); err != nil {
		w.failed.Add(1)
		slog.Error(fmt.Sprintf("%s - failed to journal %s: %v", writerLogPrefix, rec.ID, err))
		return
	}
	w.written.Add(1)
}

// Stats returns written, dropped and failed counts.
func (w *Writer) Stats() (written, dropped, failed uint64) {
	return w.written.Load(), w.dropped.Load(), w.failed.Load()
}

// Package hostloop provides a single-threaded host loop. Every registered hook runs
// on the loop goroutine, so hooks may touch state that is not safe for concurrent use.
package hostloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const logPrefix = "hostloop:loop"

// DefaultInterval is roughly one frame at 60 Hz.
const DefaultInterval = 16 * time.Millisecond

type hook struct {
	id uint64
	fn func()
}

// Loop calls its tick hooks in registration order on every tick.
type Loop struct {
	interval time.Duration

	mu     sync.Mutex
	nextID uint64
	ticks  []hook
	quits  []hook

	count atomic.Uint64
}

// New creates a loop ticking every interval. A non-positive interval uses DefaultInterval.
func New(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{interval: interval}
}

// Interval returns the tick interval.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// OnTick registers fn to run on every tick. The returned function unregisters it
// and is safe to call more than once.
func (l *Loop) OnTick(fn func()) func() {
	return l.add(&l.ticks, fn)
}

// OnQuit registers fn to run once when Run returns.
func (l *Loop) OnQuit(fn func()) func() {
	return l.add(&l.quits, fn)
}

func (l *Loop) add(list *[]hook, fn func()) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	*list = append(*list, hook{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, h := range *list {
				if h.id == id {
					*list = append((*list)[:i:i], (*list)[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *Loop) snapshot(list *[]hook) []hook {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]hook(nil), *list...)
}

// Step runs one tick synchronously on the calling goroutine.
func (l *Loop) Step() {
	for _, h := range l.snapshot(&l.ticks) {
		l.call(h.fn)
	}
	l.count.Add(1)
}

// Ticks returns how many ticks have run.
func (l *Loop) Ticks() uint64 {
	return l.count.Load()
}

// Run ticks until ctx is done, then runs the quit hooks. It must be called from
// the goroutine that owns host state.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info(fmt.Sprintf("%s - Host loop started (interval=%s)", logPrefix, l.interval))
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, h := range l.snapshot(&l.quits) {
				l.call(h.fn)
			}
			slog.Info(fmt.Sprintf("%s - Host loop stopped after %d ticks", logPrefix, l.Ticks()))
			return nil
		case <-ticker.C:
			l.Step()
		}
	}
}

func (l *Loop) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - hook panicked: %v", logPrefix, r))
		}
	}()
	fn()
}

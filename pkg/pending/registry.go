// Package pending holds commands that arrived on network goroutines and wait for the
// host goroutine to run them.
package pending

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	// ErrFull is returned by Insert when the registry is at its limit.
	ErrFull = errors.New("pending: registry full")
	// ErrClosed is returned by Insert after Close.
	ErrClosed = errors.New("pending: registry closed")
	// ErrDuplicateID is returned by Insert when the id is already queued.
	ErrDuplicateID = errors.New("pending: duplicate correlation id")
)

// Completion is a single-resolution handle. The first Resolve wins; later calls are ignored.
type Completion struct {
	once sync.Once
	ch   chan string
}

func newCompletion() *Completion {
	return &Completion{ch: make(chan string, 1)}
}

// Resolve delivers the response. It reports whether this call resolved the handle.
func (c *Completion) Resolve(response string) bool {
	resolved := false
	c.once.Do(func() {
		c.ch <- response
		close(c.ch)
		resolved = true
	})
	return resolved
}

// Wait blocks until the handle is resolved or ctx is done.
func (c *Completion) Wait(ctx context.Context) (string, error) {
	select {
	case resp := <-c.ch:
		return resp, nil
	case <-ctx.Done():
		select {
		case resp := <-c.ch:
			return resp, nil
		default:
		}
		return "", ctx.Err()
	}
}

// Entry is one drained command.
type Entry struct {
	ID         string
	RawText    string
	Completion *Completion
	seq        uint64
}

// Registry maps correlation ids to queued commands. Insert is safe from any goroutine;
// Drain is meant for the single dispatch goroutine.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	seq     uint64
	limit   int
	closed  bool
}

// NewRegistry creates a registry holding at most limit entries (0 means unbounded).
func NewRegistry(limit int) *Registry {
	if limit < 0 {
		limit = 0
	}
	return &Registry{entries: make(map[string]*Entry), limit: limit}
}

// Insert queues raw under id and returns the handle the caller waits on.
func (r *Registry) Insert(id, raw string) (*Completion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, exists := r.entries[id]; exists {
		return nil, ErrDuplicateID
	}
	if r.limit > 0 && len(r.entries) >= r.limit {
		return nil, ErrFull
	}
	r.seq++
	c := newCompletion()
	r.entries[id] = &Entry{ID: id, RawText: raw, Completion: c, seq: r.seq}
	return c, nil
}

// Drain atomically takes every queued entry, leaving the registry empty, and returns
// them in insertion order. Inserts that race with Drain land either in this snapshot
// or in the next one.
func (r *Registry) Drain() []Entry {
	r.mu.Lock()
	taken := r.entries
	r.entries = make(map[string]*Entry, len(taken))
	r.mu.Unlock()

	if len(taken) == 0 {
		return nil
	}
	out := make([]Entry, 0, len(taken))
	for _, e := range taken {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Len returns the number of queued entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Limit returns the configured capacity (0 means unbounded).
func (r *Registry) Limit() int {
	return r.limit
}

// Close rejects further inserts and resolves every queued entry with response.
// It returns how many entries were resolved.
func (r *Registry) Close(response string) int {
	r.mu.Lock()
	r.closed = true
	taken := r.entries
	r.entries = make(map[string]*Entry)
	r.mu.Unlock()

	n := 0
	for _, e := range taken {
		if e.Completion.Resolve(response) {
			n++
		}
	}
	return n
}

// Reopen allows inserts again after Close.
func (r *Registry) Reopen() {
	r.mu.Lock()
	r.closed = false
	r.mu.Unlock()
}

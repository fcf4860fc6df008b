// Package queue buffers raw creation events between the WebSocket feed and
// the rate-limited signature resolver.
package queue

import (
	"context"
	"sync"
	"time"

	"mintwatch/internal/logger"
)

// Resolver maps a signature to a token mint, or reports that it could not.
type Resolver interface {
	Resolve(ctx context.Context, signature string) (string, bool)
}

// Handler receives each successfully resolved mint, in arrival order.
type Handler func(ctx context.Context, signature, mint string)

type entry struct {
	signature  string
	enqueuedAt time.Time
}

// Queue deduplicates incoming signatures and drains them FIFO, one at a
// time. The drain is single-flight: at most one resolution call is ever
// outstanding, which keeps the external lookup under its rate limit.
type Queue struct {
	mu       sync.Mutex
	entries  []entry
	queued   map[string]bool
	draining bool

	maxAge   time.Duration
	pause    time.Duration
	resolver Resolver
	handle   Handler
}

// New creates a Queue. Entries older than maxAge are dropped without
// resolution; pause is the wait between successive resolutions.
func New(resolver Resolver, handle Handler, maxAge, pause time.Duration) *Queue {
	return &Queue{
		queued:   make(map[string]bool),
		maxAge:   maxAge,
		pause:    pause,
		resolver: resolver,
		handle:   handle,
	}
}

// Enqueue adds a signature unless it is already queued, and starts a drain
// if none is in progress.
func (q *Queue) Enqueue(ctx context.Context, signature string) {
	q.mu.Lock()
	if q.queued[signature] {
		q.mu.Unlock()
		return
	}
	q.queued[signature] = true
	q.entries = append(q.entries, entry{signature: signature, enqueuedAt: time.Now()})
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain(ctx)
	}
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// drain processes entries strictly in arrival order until the queue is
// empty, then terminates. A later Enqueue restarts it.
func (q *Queue) drain(ctx context.Context) {
	for {
		q.mu.Lock()
		if len(q.entries) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		e := q.entries[0]
		q.entries = q.entries[1:]
		delete(q.queued, e.signature)
		q.mu.Unlock()

		if ctx.Err() != nil {
			continue // keep draining the slice so the goroutine exits promptly
		}

		// Stale events are no longer actionable; don't burn a rate-limited
		// lookup on them.
		if age := time.Since(e.enqueuedAt); age > q.maxAge {
			logger.Debug("Dropping stale event %s (age %v)", e.signature, age)
			continue
		}

		if mint, ok := q.resolver.Resolve(ctx, e.signature); ok {
			q.handle(ctx, e.signature, mint)
		}

		select {
		case <-ctx.Done():
		case <-time.After(q.pause):
		}
	}
}

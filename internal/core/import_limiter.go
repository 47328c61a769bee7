package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyImports is returned when every import slot stays taken for the
// whole wait period. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// Limiter defaults, used when the configured values are not positive.
const (
	DefaultMaxConcurrentImports = 5
	DefaultMaxWaitTime          = 30 * time.Second
)

// ImportLimiter caps how many imports (dry runs included) hold a file and
// its parsed batch in memory at once. It bounds resources only; writes to
// the same contacts are serialized by the store transaction.
type ImportLimiter struct {
	slots   *semaphore.Weighted
	size    int
	maxWait time.Duration

	mu     sync.Mutex
	active int
	idle   chan struct{} // closed while active == 0
}

// NewImportLimiter returns a limiter with size slots. Acquire gives up
// after maxWait.
func NewImportLimiter(size int, maxWait time.Duration) *ImportLimiter {
	if size <= 0 {
		size = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	idle := make(chan struct{})
	close(idle)
	return &ImportLimiter{
		slots:   semaphore.NewWeighted(int64(size)),
		size:    size,
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire takes a slot, waiting at most the limiter's maxWait. A timeout
// yields ErrTooManyImports; cancellation of ctx yields ctx.Err().
// Every successful Acquire must be paired with one Release.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyImports
	}
	l.enter()
	return nil
}

// TryAcquire takes a slot only if one is free right now.
func (l *ImportLimiter) TryAcquire() bool {
	if !l.slots.TryAcquire(1) {
		return false
	}
	l.enter()
	return true
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *ImportLimiter) Release() {
	l.leave()
	l.slots.Release(1)
}

func (l *ImportLimiter) enter() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
}

func (l *ImportLimiter) leave() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
}

// WaitForDrain blocks until no import holds a slot or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ImportLimiterStatus is reported by the health endpoint.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns a snapshot of slot usage.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ImportLimiterStatus{
		Active:        l.active,
		Available:     l.size - l.active,
		MaxConcurrent: l.size,
	}
}

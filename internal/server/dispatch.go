package server

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Dispatcher decides how an accepted connection gets its own goroutine.
// Dispatch must not block on fn itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, fn func()) error
}

// Unbounded starts a goroutine per connection with no admission limit.
type Unbounded struct{}

func (Unbounded) Dispatch(_ context.Context, fn func()) error {
	go fn()
	return nil
}

// Limited runs at most n connection handlers at once. When all slots are
// busy, Dispatch blocks the accept loop until one frees up or ctx ends.
type Limited struct {
	sem *semaphore.Weighted
}

func NewLimited(n int64) *Limited {
	return &Limited{sem: semaphore.NewWeighted(n)}
}

func (l *Limited) Dispatch(ctx context.Context, fn func()) error {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer l.sem.Release(1)
		fn()
	}()
	return nil
}

// NewDispatcher returns Unbounded for maxConns <= 0 and Limited otherwise.
func NewDispatcher(maxConns int64) Dispatcher {
	if maxConns <= 0 {
		return Unbounded{}
	}
	return NewLimited(maxConns)
}

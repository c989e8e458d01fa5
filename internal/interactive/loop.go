// Package interactive provides the single execution context that owns
// user-facing state. Background work hands results back by posting functions
// that run on the loop goroutine in the order they were posted.
package interactive

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrStopped = errors.New("interactive loop stopped")

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	done    chan struct{}
	stopped bool
	logger  zerolog.Logger
}

// New creates a loop. Call Run to start processing.
func New(logger zerolog.Logger) *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "interactive").Logger(),
	}
}

// Post enqueues fn. It never blocks, so background goroutines can post
// freely. Posting after the loop stopped returns ErrStopped.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Run processes posted functions until ctx is canceled. Functions already
// queued when ctx ends are drained before Run returns.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)
	l.logger.Debug().Msg("Interactive loop started")

	for {
		l.drain()

		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.stopped = true
			l.mu.Unlock()
			l.drain()
			l.logger.Debug().Msg("Interactive loop stopped")
			return
		case <-l.wake:
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.run(fn)
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().Interface("panic", r).Msg("Posted function panicked")
		}
	}()
	fn()
}

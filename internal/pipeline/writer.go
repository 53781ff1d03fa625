package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var errWriterClosed = errors.New("writer closed")

type writeJob struct {
	name string
	fn   func(context.Context) error
}

// writer runs store writes one at a time on a single goroutine so the
// metrics store only ever sees serialized writes.
type writer struct {
	jobs   chan writeJob
	done   chan struct{}
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newWriter(size int, logger *zap.Logger) *writer {
	w := &writer{
		jobs:   make(chan writeJob, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go w.run()
	return w
}

func (w *writer) run() {
	defer close(w.done)
	for job := range w.jobs {
		if err := job.fn(context.Background()); err != nil {
			w.logger.Warn("store write failed", zap.String("write", job.name), zap.Error(err))
			w.errMu.Lock()
			w.err = multierr.Append(w.err, fmt.Errorf("%s: %w", job.name, err))
			w.errMu.Unlock()
		}
	}
}

// enqueue blocks while the queue is full, until ctx is done.
func (w *writer) enqueue(ctx context.Context, name string, fn func(context.Context) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return errWriterClosed
	}
	select {
	case w.jobs <- writeJob{name: name, fn: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flush waits until every job queued before the call has run.
func (w *writer) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	if err := w.enqueue(ctx, "flush", func(context.Context) error {
		close(barrier)
		return nil
	}); err != nil {
		return err
	}
	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and returns every write error seen.
func (w *writer) close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.jobs)
	}
	w.mu.Unlock()
	<-w.done

	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}

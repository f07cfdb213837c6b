package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many blocking operations (disk, archive, blob store,
// classification engine) run at once across every request.
//
// Callers must not submit to the pool from inside a job: jobs hold a slot
// for their whole run and nesting can exhaust the pool.
type Pool struct {
	sem     *semaphore.Weighted
	size    int64
	running atomic.Int64
	logger  *slog.Logger
}

// NewPool creates a pool with size slots (minimum 1)
func NewPool(size int, logger *slog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		size:   int64(size),
		logger: logger,
	}
}

// Size returns the number of slots
func (p *Pool) Size() int { return int(p.size) }

// Running returns the number of jobs currently holding a slot
func (p *Pool) Running() int { return int(p.running.Load()) }

// Do waits for a free slot, runs fn on a worker goroutine and waits for it.
// If ctx ends first, Do returns ctx.Err(); the job keeps its slot until fn returns.
func (p *Pool) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	done, err := p.start(ctx, name, fn)
	if err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is Do for jobs that own resources the caller releases afterwards: it
// always waits for fn to return, even once ctx has ended. fn must honor ctx.
func (p *Pool) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	done, err := p.start(ctx, name, fn)
	if err != nil {
		return err
	}

	err = <-done
	if ctxErr := ctx.Err(); ctxErr != nil && err == nil {
		return ctxErr
	}
	return err
}

// start acquires a slot and launches fn; the channel receives its result
func (p *Pool) start(ctx context.Context, name string, fn func(ctx context.Context) error) (<-chan error, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire worker for %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		p.running.Add(1)
		start := time.Now()
		var err error
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("worker job panicked",
					"job", name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
			p.running.Add(-1)
			p.sem.Release(1)
			p.logger.Debug("worker job finished", "job", name, "duration_ms", time.Since(start).Milliseconds())
			done <- err
		}()
		err = fn(ctx)
	}()
	return done, nil
}

// Submit is Do for jobs that produce a value
func Submit[T any](ctx context.Context, p *Pool, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, name, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

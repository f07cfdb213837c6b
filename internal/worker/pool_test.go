package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(2, testLogger())

	var current, peak atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := pool.Do(context.Background(), "sleep", func(ctx context.Context) error {
				n := current.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				current.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, 0, pool.Running())
}

func TestPoolReturnsJobError(t *testing.T) {
	pool := NewPool(1, testLogger())
	want := errors.New("boom")

	err := pool.Do(context.Background(), "fail", func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestPoolRecoversPanic(t *testing.T) {
	pool := NewPool(1, testLogger())

	err := pool.Do(context.Background(), "panic", func(ctx context.Context) error { panic("bad input") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad input")

	// Slot was released
	err = pool.Do(context.Background(), "after", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestPoolAcquireHonoursContext(t *testing.T) {
	pool := NewPool(1, testLogger())
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = pool.Do(context.Background(), "hold", func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := pool.Do(ctx, "blocked", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
}

func TestSubmit(t *testing.T) {
	pool := NewPool(3, testLogger())

	got, err := Submit(context.Background(), pool, "answer", func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	_, err = Submit(context.Background(), pool, "fail", func(ctx context.Context) (string, error) {
		return "", io.ErrUnexpectedEOF
	})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, 3, pool.Size())
}

func TestPoolRunWaitsForJobAfterCancel(t *testing.T) {
	pool := NewPool(1, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var finished atomic.Bool
	errc := make(chan error, 1)
	go func() {
		errc <- pool.Run(ctx, "cleanup-sensitive", func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			finished.Store(true)
			return nil
		})
	}()

	<-started
	cancel()
	err := <-errc

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, finished.Load(), "Run returned before the job finished")
	assert.Equal(t, 0, pool.Running())
}

func TestPoolRunReturnsJobError(t *testing.T) {
	pool := NewPool(1, testLogger())
	want := errors.New("corrupt entry")

	err := pool.Run(context.Background(), "fail", func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

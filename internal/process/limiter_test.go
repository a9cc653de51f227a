package process

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	const k, m = 3, 40
	l := NewLimiter(k)

	var running, peak, completed atomic.Int64
	var wg sync.WaitGroup
	for range m {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := l.Acquire(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			defer p.Release()

			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			completed.Add(1)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(k))
	assert.Equal(t, int64(m), completed.Load())
	assert.Equal(t, 0, l.InUse())
}

func TestLimiter_ReleaseIsIdempotent(t *testing.T) {
	l := NewLimiter(1)
	p, err := l.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l.InUse())

	p.Release()
	p.Release()
	assert.Equal(t, 0, l.InUse())

	// Capacity is still exactly one.
	p1, err := l.Acquire(context.Background())
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, ErrCancelled)
	p1.Release()
}

func TestLimiter_AcquireCancelled(t *testing.T) {
	l := NewLimiter(1)
	held, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := l.Acquire(ctx)
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("Acquire did not return after cancellation")
	}
}

func TestLimiter_Close(t *testing.T) {
	l := NewLimiter(1)
	held, err := l.Acquire(context.Background())
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := l.Acquire(context.Background())
		errc <- err
	}()
	l.Close()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrLimiterClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("pending Acquire did not fail after Close")
	}

	_, err = l.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrLimiterClosed)
	assert.NotErrorIs(t, err, ErrCancelled)

	held.Release()
	assert.Equal(t, 0, l.InUse())
}

func TestNewLimiter_ClampsCapacity(t *testing.T) {
	assert.Equal(t, 1, NewLimiter(0).Size())
	assert.Equal(t, 4, NewLimiter(4).Size())
}

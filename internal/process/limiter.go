package process

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a counting permit pool bounding how many external processes
// run at once. One Limiter is created per run and shared by every probe and
// encode invocation.
type Limiter struct {
	sem   *semaphore.Weighted
	size  int
	inUse atomic.Int64

	closed    context.Context
	closeFunc context.CancelFunc
}

// Permit is a lease from a Limiter. Release returns it to the pool; calling
// Release more than once is a no-op.
type Permit struct {
	l    *Limiter
	once sync.Once
}

// NewLimiter returns a Limiter with capacity k. Values below 1 are treated
// as 1.
func NewLimiter(k int) *Limiter {
	if k < 1 {
		k = 1
	}
	closed, closeFunc := context.WithCancel(context.Background())
	return &Limiter{
		sem:       semaphore.NewWeighted(int64(k)),
		size:      k,
		closed:    closed,
		closeFunc: closeFunc,
	}
}

// Acquire blocks until a permit is free. It fails with ErrCancelled when ctx
// is done first and with ErrLimiterClosed when the limiter has been closed.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	if l.closed.Err() != nil {
		return nil, ErrLimiterClosed
	}

	actx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(l.closed, cancel)
	defer stop()

	if err := l.sem.Acquire(actx, 1); err != nil {
		if l.closed.Err() != nil {
			return nil, ErrLimiterClosed
		}
		return nil, fmt.Errorf("acquire permit: %w", ErrCancelled)
	}
	if l.closed.Err() != nil {
		l.sem.Release(1)
		return nil, ErrLimiterClosed
	}

	l.inUse.Add(1)
	return &Permit{l: l}, nil
}

// Release returns the permit to its pool.
func (p *Permit) Release() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		p.l.inUse.Add(-1)
		p.l.sem.Release(1)
	})
}

// Close poisons the limiter: pending and future Acquire calls fail with
// ErrLimiterClosed. Permits already handed out can still be released.
func (l *Limiter) Close() {
	l.closeFunc()
}

// Size returns the capacity.
func (l *Limiter) Size() int { return l.size }

// InUse returns the number of permits currently held.
func (l *Limiter) InUse() int { return int(l.inUse.Load()) }

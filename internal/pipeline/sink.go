package pipeline

import (
	"errors"
	"sync"
)

// ErrSinkClosed is returned by Send after the consumer closed the sink. It
// fails the sending job only.
var ErrSinkClosed = errors.New("event sink closed")

// Sink is the bounded channel between every job of a run and the single
// consumer. A full channel blocks the sender; no event is dropped.
type Sink struct {
	ch         chan Event
	done       chan struct{}
	closeOnce  sync.Once
	finishOnce sync.Once
}

// NewSink returns a Sink buffering up to capacity events.
func NewSink(capacity int) *Sink {
	if capacity < 1 {
		capacity = 1
	}
	return &Sink{
		ch:   make(chan Event, capacity),
		done: make(chan struct{}),
	}
}

// Events is the consumer side. It is closed once the Engine has finished
// every job.
func (s *Sink) Events() <-chan Event { return s.ch }

// Send delivers ev, blocking while the buffer is full. It does not observe
// job cancellation so a cancelled job can still report its failure.
func (s *Sink) Send(ev Event) error {
	select {
	case <-s.done:
		return ErrSinkClosed
	default:
	}
	select {
	case s.ch <- ev:
		return nil
	case <-s.done:
		return ErrSinkClosed
	}
}

// Close is called by the consumer when it stops reading. Pending and future
// sends fail with ErrSinkClosed.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// finish closes the event channel. Called by the Engine after every
// producer has returned.
func (s *Sink) finish() {
	s.finishOnce.Do(func() { close(s.ch) })
}

// Package queue provides the observable FIFO that couples pipeline stages.
//
// Every Push and every Pop notifies subscribers with the new size of the
// queue. Notifications are delivered synchronously, in the order the
// operations complete, so the sequence of reported sizes is always the
// running count of pushes minus pops.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/dudk/livestack/frame"
)

// ErrEmpty is returned by TryPop when there is nothing to pop.
var ErrEmpty = errors.New("queue is empty")

// SizeFunc receives the size of the queue after a push or a pop.
// It is called while the queue is locked and must not use the queue.
type SizeFunc func(size int)

// Queue is an unbounded FIFO of frames.
type Queue struct {
	name string

	m           sync.Mutex
	items       []*frame.Frame
	subscribers []SizeFunc

	// readyc wakes up blocked Pop calls. It's buffered with one slot and
	// re-armed after each pop while items remain.
	readyc chan struct{}
}

// New creates a new named queue.
func New(name string) *Queue {
	return &Queue{
		name:   name,
		readyc: make(chan struct{}, 1),
	}
}

// Name of the queue.
func (q *Queue) Name() string {
	return q.name
}

// Subscribe registers a size change observer.
func (q *Queue) Subscribe(fn SizeFunc) {
	q.m.Lock()
	defer q.m.Unlock()
	q.subscribers = append(q.subscribers, fn)
}

// Push appends the frame and notifies subscribers before it returns.
func (q *Queue) Push(f *frame.Frame) {
	q.m.Lock()
	q.items = append(q.items, f)
	q.notify()
	q.m.Unlock()
	q.wake()
}

// Pop blocks until a frame is available or ctx is done.
func (q *Queue) Pop(ctx context.Context) (*frame.Frame, error) {
	for {
		f, err := q.TryPop()
		if err == nil {
			return f, nil
		}
		select {
		case <-q.readyc:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryPop removes and returns the head of the queue without blocking.
// ErrEmpty is returned if queue has no frames.
func (q *Queue) TryPop() (*frame.Frame, error) {
	q.m.Lock()
	if len(q.items) == 0 {
		q.m.Unlock()
		return nil, ErrEmpty
	}
	f := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.notify()
	remaining := len(q.items)
	q.m.Unlock()
	if remaining > 0 {
		q.wake()
	}
	return f, nil
}

// Purge pops frames until the queue is empty and returns the number of
// discarded frames. Each discarded frame is reported to subscribers as a
// regular pop. Producers are never blocked for longer than one pop.
func (q *Queue) Purge() int {
	n := 0
	for {
		if _, err := q.TryPop(); err != nil {
			return n
		}
		n++
	}
}

// IsEmpty checks if queue has no frames.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns current size of the queue.
func (q *Queue) Len() int {
	q.m.Lock()
	defer q.m.Unlock()
	return len(q.items)
}

// notify must be called with q.m locked.
func (q *Queue) notify() {
	size := len(q.items)
	for _, fn := range q.subscribers {
		fn(size)
	}
}

func (q *Queue) wake() {
	select {
	case q.readyc <- struct{}{}:
	default:
	}
}

// Package stage provides the long-lived worker that drains one queue and
// emits results of its transform to subscribers.
package stage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/log"
	"github.com/dudk/livestack/metric"
	"github.com/dudk/livestack/queue"
)

// ProcessFunc transforms one frame. Returned frame is emitted to result
// subscribers; nil frame with nil error means the stage consumed the
// frame without output.
type ProcessFunc func(*frame.Frame) (*frame.Frame, error)

// ResultFunc receives stage output.
type ResultFunc func(*frame.Frame)

// Stage is a worker bound to one input queue.
type Stage struct {
	name  string
	in    *queue.Queue
	fn    ProcessFunc
	log   log.Logger
	meter metric.MeasureFunc

	// results are guarded by separate lock: subscribers are called from
	// the worker goroutine.
	rm      sync.RWMutex
	results []ResultFunc

	m      sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option provides a way to set functional parameters to stage.
type Option func(s *Stage)

// WithLogger sets logger to Stage. If this option is not provided, silent logger is used.
func WithLogger(logger log.Logger) Option {
	return func(s *Stage) {
		s.log = logger
	}
}

// New creates a new stopped stage.
func New(name string, in *queue.Queue, fn ProcessFunc, options ...Option) *Stage {
	s := &Stage{
		name:  name,
		in:    in,
		fn:    fn,
		log:   log.Silent,
		meter: metric.Meter(name),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Name of the stage.
func (s *Stage) Name() string {
	return s.name
}

// OnResult registers result subscriber.
func (s *Stage) OnResult(fn ResultFunc) {
	s.rm.Lock()
	defer s.rm.Unlock()
	s.results = append(s.results, fn)
}

// Start the worker. Subsequent calls do nothing while the worker is running.
func (s *Stage) Start() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	s.log.Debug(fmt.Sprintf("%v started", s))
}

// Stop signals the worker to finish current frame and waits until it exits.
// Calling Stop on stopped stage does nothing.
func (s *Stage) Stop() {
	s.m.Lock()
	defer s.m.Unlock()
	if s.done == nil {
		return
	}
	s.cancel()
	<-s.done
	s.done = nil
	s.cancel = nil
	s.log.Debug(fmt.Sprintf("%v stopped", s))
}

// IsRunning checks if the worker is running.
func (s *Stage) IsRunning() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.done != nil
}

// run the worker loop. It only returns when ctx is done.
func (s *Stage) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		f, err := s.in.Pop(ctx)
		if err != nil {
			return
		}
		// frames already popped are always processed till the end.
		s.process(f)
	}
}

func (s *Stage) process(f *frame.Frame) {
	started := time.Now()
	out, err := s.safeCall(f)
	s.meter(started, err)
	if err != nil {
		s.log.Warn(fmt.Sprintf("%v dropped frame %s: %v", s, f.ID, err))
		return
	}
	if out == nil {
		return
	}
	s.rm.RLock()
	defer s.rm.RUnlock()
	for _, fn := range s.results {
		fn(out)
	}
}

// safeCall keeps the worker alive if transform panics.
func (s *Stage) safeCall(f *frame.Frame) (out *frame.Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(f)
}

// String returns stage name.
func (s *Stage) String() string {
	return fmt.Sprintf("stage %s", s.name)
}

// Package mock provides mocks for pipeline components and allows to execute integration tests.
package mock

import (
	"sync"

	"github.com/dudk/livestack/frame"
)

// Scanner mocks a livestack.Scanner interface. Frames are emitted
// manually with Emit.
type Scanner struct {
	m       sync.Mutex
	running bool
	fn      func(*frame.Frame)
	counter

	ErrorOnStart error
}

// OnFrame implements livestack.Scanner.
func (s *Scanner) OnFrame(fn func(*frame.Frame)) {
	s.m.Lock()
	defer s.m.Unlock()
	s.fn = fn
}

// Start implements livestack.Scanner.
func (s *Scanner) Start() error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.ErrorOnStart != nil {
		return s.ErrorOnStart
	}
	s.running = true
	s.starts++
	return nil
}

// Stop implements livestack.Scanner.
func (s *Scanner) Stop() {
	s.m.Lock()
	defer s.m.Unlock()
	s.running = false
	s.stops++
}

// IsRunning checks if scanner was started and not stopped after.
func (s *Scanner) IsRunning() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.running
}

// Emit passes frame to subscriber if scanner is running. It returns
// false if frame was dropped.
func (s *Scanner) Emit(f *frame.Frame) bool {
	s.m.Lock()
	fn, running := s.fn, s.running
	if running {
		s.emitted++
	}
	s.m.Unlock()
	if !running || fn == nil {
		return false
	}
	fn(f)
	return true
}

// Count returns number of starts, stops and emitted frames.
func (s *Scanner) Count() (int, int, int) {
	s.m.Lock()
	defer s.m.Unlock()
	return s.starts, s.stops, s.emitted
}

// Aligner mocks a stack.Aligner interface. It shifts every pixel by Offset.
type Aligner struct {
	m      sync.Mutex
	calls  int
	Offset float64

	ErrorOnCall error
}

// Align implements stack.Aligner.
func (a *Aligner) Align(reference, f *frame.Frame) (*frame.Frame, error) {
	a.m.Lock()
	a.calls++
	a.m.Unlock()
	if a.ErrorOnCall != nil {
		return nil, a.ErrorOnCall
	}
	out := f.Clone()
	for i := range out.Pixels {
		out.Pixels[i] += a.Offset
	}
	return out, nil
}

// Calls returns number of Align calls.
func (a *Aligner) Calls() int {
	a.m.Lock()
	defer a.m.Unlock()
	return a.calls
}

// counter counts scanner life-cycle calls.
type counter struct {
	starts  int
	stops   int
	emitted int
}

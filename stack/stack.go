// Package stack accumulates pre-processed frames into one combined image.
package stack

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/log"
	"github.com/dudk/livestack/queue"
	"github.com/dudk/livestack/stage"
)

// Mode defines how frames are folded into the accumulation.
type Mode string

const (
	// Mean keeps running average of all stacked frames.
	Mean Mode = "mean"
	// Sum adds all stacked frames.
	Sum Mode = "sum"
)

// Name is the stage name of the stacker.
const Name = "stacker"

var (
	// ErrGeometry is returned when frame can't be combined with the stack.
	ErrGeometry = errors.New("frame geometry differs from stack")
	// ErrMode is returned for unknown stacking modes.
	ErrMode = errors.New("unknown stacking mode")
)

// ParseMode returns stacking mode for its name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case Mean, Sum:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrMode, s)
}

// Settings provides current stacking configuration. It's read before
// every fold, so changes apply to the next frame.
type Settings interface {
	StackingMode() Mode
	AlignBeforeStacking() bool
}

// Aligner registers frame against the stack reference.
type Aligner interface {
	Align(reference, f *frame.Frame) (*frame.Frame, error)
}

// SizeFunc receives the new stack size.
type SizeFunc func(size int)

// Stacker is a stage which folds every input frame into the stack and
// emits the combined result.
type Stacker struct {
	*stage.Stage
	settings Settings
	aligner  Aligner
	log      log.Logger

	m         sync.Mutex
	reference *frame.Frame
	acc       []float64
	size      int
	subs      []SizeFunc
}

// Option provides a way to set functional parameters to stacker.
type Option func(s *Stacker)

// WithLogger sets logger to Stacker.
func WithLogger(logger log.Logger) Option {
	return func(s *Stacker) {
		s.log = logger
	}
}

// WithAligner sets aligner used when alignment is enabled.
func WithAligner(a Aligner) Option {
	return func(s *Stacker) {
		s.aligner = a
	}
}

// New creates a stacker reading frames from in.
func New(in *queue.Queue, settings Settings, options ...Option) *Stacker {
	s := &Stacker{
		settings: settings,
		log:      log.Silent,
	}
	for _, option := range options {
		option(s)
	}
	s.Stage = stage.New(Name, in, s.stack, stage.WithLogger(s.log))
	return s
}

// OnSizeChanged registers stack size subscriber.
func (s *Stacker) OnSizeChanged(fn SizeFunc) {
	s.m.Lock()
	defer s.m.Unlock()
	s.subs = append(s.subs, fn)
}

// Size returns number of frames folded into the stack.
func (s *Stacker) Size() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.size
}

// Reset clears accumulation and sets size to 0.
func (s *Stacker) Reset() {
	s.m.Lock()
	defer s.m.Unlock()
	s.reference = nil
	s.acc = nil
	s.size = 0
	s.notify()
	s.log.Info("Stack reset")
}

// stack is the stage transform. Accumulation always holds the sum of
// stacked frames, mode only defines how the result is derived from it.
func (s *Stacker) stack(f *frame.Frame) (*frame.Frame, error) {
	if len(f.Pixels) != f.Len() {
		return nil, fmt.Errorf("%w: %d values for %dx%dx%d", ErrGeometry, len(f.Pixels), f.Width, f.Height, f.Channels)
	}
	mode, align := s.settings.StackingMode(), s.settings.AlignBeforeStacking()
	if mode != Mean && mode != Sum {
		return nil, fmt.Errorf("%w: %q", ErrMode, mode)
	}

	s.m.Lock()
	defer s.m.Unlock()
	if s.reference == nil {
		s.reference = f
		s.acc = make([]float64, len(f.Pixels))
		copy(s.acc, f.Pixels)
		s.size = 1
		s.notify()
		return s.result(f, mode), nil
	}
	if !s.reference.SameGeometry(f) {
		return nil, ErrGeometry
	}

	if align && s.aligner != nil {
		aligned, err := s.aligner.Align(s.reference, f)
		if err != nil {
			return nil, fmt.Errorf("alignment failed: %w", err)
		}
		f = aligned
	}

	floats.Add(s.acc, f.Pixels)
	s.size++
	s.notify()
	return s.result(f, mode), nil
}

// result returns the stack in requested mode as a new frame. Must be
// called with s.m locked.
func (s *Stacker) result(f *frame.Frame, mode Mode) *frame.Frame {
	pixels := make([]float64, len(s.acc))
	copy(pixels, s.acc)
	if mode == Mean {
		floats.Scale(1/float64(s.size), pixels)
	}
	return frame.New(f.Width, f.Height, f.Channels, pixels)
}

// notify must be called with s.m locked.
func (s *Stacker) notify() {
	for _, fn := range s.subs {
		fn(s.size)
	}
}

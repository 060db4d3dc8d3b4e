// Package process holds pluggable bodies of the pre-processing and
// post-processing stages.
package process

import (
	"errors"

	"gonum.org/v1/gonum/floats"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/stage"
)

// ErrEmptyFrame is returned when frame has no pixels to process.
var ErrEmptyFrame = errors.New("frame has no pixels")

// Processor transforms a frame. Implementations may mutate the frame in
// place and return it.
type Processor interface {
	Process(*frame.Frame) (*frame.Frame, error)
}

// ProcessorFunc is an adapter to use ordinary functions as processors.
type ProcessorFunc func(*frame.Frame) (*frame.Frame, error)

// Process calls fn(f).
func (fn ProcessorFunc) Process(f *frame.Frame) (*frame.Frame, error) {
	return fn(f)
}

// Chain returns stage body which applies processors in order. The first
// failure aborts the chain for that frame.
func Chain(processors ...Processor) stage.ProcessFunc {
	return func(f *frame.Frame) (*frame.Frame, error) {
		var err error
		for _, p := range processors {
			if f, err = p.Process(f); err != nil {
				return nil, err
			}
		}
		return f, nil
	}
}

// Clip limits pixel values to [0, 1].
func Clip() Processor {
	return ProcessorFunc(func(f *frame.Frame) (*frame.Frame, error) {
		if len(f.Pixels) == 0 {
			return nil, ErrEmptyFrame
		}
		for i, v := range f.Pixels {
			switch {
			case v < 0:
				f.Pixels[i] = 0
			case v > 1:
				f.Pixels[i] = 1
			}
		}
		return f, nil
	})
}

// Levels stretches pixel values linearly, so the darkest pixel becomes 0
// and the brightest becomes 1. Flat frames are left untouched.
func Levels() Processor {
	return ProcessorFunc(func(f *frame.Frame) (*frame.Frame, error) {
		if len(f.Pixels) == 0 {
			return nil, ErrEmptyFrame
		}
		low, high := floats.Min(f.Pixels), floats.Max(f.Pixels)
		if high == low {
			return f, nil
		}
		floats.AddConst(-low, f.Pixels)
		floats.Scale(1/(high-low), f.Pixels)
		return f, nil
	})
}

package process_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/process"
)

func TestChain(t *testing.T) {
	errBroken := errors.New("broken")
	var tests = []struct {
		description string
		processors  []process.Processor
		pixels      []float64
		expected    []float64
		err         error
	}{
		{
			description: "empty chain",
			pixels:      []float64{0.5, 2},
			expected:    []float64{0.5, 2},
		},
		{
			description: "clip",
			processors:  []process.Processor{process.Clip()},
			pixels:      []float64{-1, 0.5, 2},
			expected:    []float64{0, 0.5, 1},
		},
		{
			description: "levels",
			processors:  []process.Processor{process.Levels()},
			pixels:      []float64{2, 4, 6},
			expected:    []float64{0, 0.5, 1},
		},
		{
			description: "flat levels",
			processors:  []process.Processor{process.Levels()},
			pixels:      []float64{3, 3},
			expected:    []float64{3, 3},
		},
		{
			description: "clip then levels",
			processors:  []process.Processor{process.Clip(), process.Levels()},
			pixels:      []float64{-1, 0.25, 0.5},
			expected:    []float64{0, 0.5, 1},
		},
		{
			description: "empty frame",
			processors:  []process.Processor{process.Levels()},
			err:         process.ErrEmptyFrame,
		},
		{
			description: "failure stops the chain",
			processors: []process.Processor{
				process.ProcessorFunc(func(*frame.Frame) (*frame.Frame, error) {
					return nil, errBroken
				}),
				process.ProcessorFunc(func(*frame.Frame) (*frame.Frame, error) {
					panic("must not be called")
				}),
			},
			pixels: []float64{1},
			err:    errBroken,
		},
	}

	for _, test := range tests {
		fn := process.Chain(test.processors...)
		out, err := fn(frame.New(len(test.pixels), 1, 1, test.pixels))
		if test.err != nil {
			assert.Equal(t, test.err, err, test.description)
			assert.Nil(t, out, test.description)
			continue
		}
		assert.Nil(t, err, test.description)
		assert.InDeltaSlice(t, test.expected, out.Pixels, 1e-9, test.description)
	}
}

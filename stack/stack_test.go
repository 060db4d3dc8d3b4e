package stack_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/queue"
	"github.com/dudk/livestack/stack"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type settings struct {
	mode  stack.Mode
	align bool
}

func (s settings) StackingMode() stack.Mode { return s.mode }

func (s settings) AlignBeforeStacking() bool { return s.align }

// shiftAligner adds offset to every pixel and counts calls.
type shiftAligner struct {
	offset float64
	err    error
	calls  int
}

func (a *shiftAligner) Align(_, f *frame.Frame) (*frame.Frame, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	for i := range f.Pixels {
		f.Pixels[i] += a.offset
	}
	return f, nil
}

type results struct {
	m      sync.Mutex
	frames []*frame.Frame
	sizes  []int
}

func (r *results) frame(f *frame.Frame) {
	r.m.Lock()
	r.frames = append(r.frames, f)
	r.m.Unlock()
}

func (r *results) size(s int) {
	r.m.Lock()
	r.sizes = append(r.sizes, s)
	r.m.Unlock()
}

func (r *results) count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.frames)
}

func newFrame(values ...float64) *frame.Frame {
	return frame.New(len(values), 1, 1, values)
}

func TestStack(t *testing.T) {
	var tests = []struct {
		description string
		settings    settings
		aligner     *shiftAligner
		frames      []*frame.Frame
		expected    []float64
		size        int
		alignCalls  int
	}{
		{
			description: "mean",
			settings:    settings{mode: stack.Mean},
			frames: []*frame.Frame{
				newFrame(0, 3),
				newFrame(1, 6),
				newFrame(2, 0),
			},
			expected: []float64{1, 3},
			size:     3,
		},
		{
			description: "sum",
			settings:    settings{mode: stack.Sum},
			frames: []*frame.Frame{
				newFrame(0, 3),
				newFrame(1, 6),
			},
			expected: []float64{1, 9},
			size:     2,
		},
		{
			description: "geometry mismatch is dropped",
			settings:    settings{mode: stack.Sum},
			frames: []*frame.Frame{
				newFrame(1, 1),
				newFrame(1, 1, 1),
				newFrame(1, 1),
			},
			expected: []float64{2, 2},
			size:     2,
		},
		{
			description: "aligned before stacking",
			settings:    settings{mode: stack.Sum, align: true},
			aligner:     &shiftAligner{offset: 1},
			frames: []*frame.Frame{
				newFrame(1, 1),
				newFrame(1, 1),
			},
			expected:   []float64{3, 3},
			size:       2,
			alignCalls: 1,
		},
		{
			description: "alignment failure is dropped",
			settings:    settings{mode: stack.Sum, align: true},
			aligner:     &shiftAligner{err: errors.New("not enough stars")},
			frames: []*frame.Frame{
				newFrame(1, 1),
				newFrame(1, 1),
			},
			expected:   []float64{1, 1},
			size:       1,
			alignCalls: 1,
		},
		{
			description: "unknown mode is dropped",
			settings:    settings{mode: "median"},
			frames: []*frame.Frame{
				newFrame(1, 1),
			},
			size: 0,
		},
		{
			description: "alignment disabled",
			settings:    settings{mode: stack.Sum},
			aligner:     &shiftAligner{offset: 1},
			frames: []*frame.Frame{
				newFrame(1, 1),
				newFrame(1, 1),
			},
			expected: []float64{2, 2},
			size:     2,
		},
	}

	for _, test := range tests {
		q := queue.New("stack")
		options := []stack.Option{}
		if test.aligner != nil {
			options = append(options, stack.WithAligner(test.aligner))
		}
		s := stack.New(q, test.settings, options...)
		r := &results{}
		s.OnResult(r.frame)
		s.Start()
		for _, f := range test.frames {
			q.Push(f)
		}
		assert.Eventually(t, q.IsEmpty, time.Second, time.Millisecond, test.description)
		s.Stop()

		assert.Equal(t, test.size, s.Size(), test.description)
		assert.Equal(t, test.size, r.count(), test.description)
		if r.count() > 0 {
			assert.InDeltaSlice(t, test.expected, r.frames[r.count()-1].Pixels, 1e-9, test.description)
		}
		if test.aligner != nil {
			assert.Equal(t, test.alignCalls, test.aligner.calls, test.description)
		}
	}
}

func TestReset(t *testing.T) {
	q := queue.New("stack")
	s := stack.New(q, settings{mode: stack.Mean})
	r := &results{}
	s.OnSizeChanged(r.size)
	s.OnResult(r.frame)
	s.Start()
	defer s.Stop()

	q.Push(newFrame(4, 4))
	q.Push(newFrame(2, 2))
	assert.Eventually(t, func() bool { return r.count() == 2 }, time.Second, time.Millisecond)

	s.Reset()
	assert.Equal(t, 0, s.Size())

	// next frame starts a new stack, possibly with a new geometry.
	q.Push(newFrame(8, 8, 8))
	assert.Eventually(t, func() bool { return r.count() == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []float64{8, 8, 8}, r.frames[2].Pixels)

	r.m.Lock()
	assert.Equal(t, []int{1, 2, 0, 1}, r.sizes)
	r.m.Unlock()
}

// Emitted results are copies: mutating them doesn't affect the stack.
func TestResultIsCopy(t *testing.T) {
	q := queue.New("stack")
	s := stack.New(q, settings{mode: stack.Sum})
	r := &results{}
	s.OnResult(func(f *frame.Frame) {
		r.frame(f.Clone())
		f.Pixels[0] = 100
	})
	s.Start()
	defer s.Stop()

	q.Push(newFrame(1))
	q.Push(newFrame(1))
	assert.Eventually(t, func() bool { return r.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 2.0, r.frames[1].Pixels[0])
	assert.Equal(t, 2, s.Size())
}

// modeSettings allows to change mode between frames.
type modeSettings struct {
	m    sync.Mutex
	mode stack.Mode
}

func (s *modeSettings) set(m stack.Mode) {
	s.m.Lock()
	s.mode = m
	s.m.Unlock()
}

func (s *modeSettings) StackingMode() stack.Mode {
	s.m.Lock()
	defer s.m.Unlock()
	return s.mode
}

func (s *modeSettings) AlignBeforeStacking() bool { return false }

func TestModeChange(t *testing.T) {
	var tests = []struct {
		description string
		modes       []stack.Mode
		expected    []float64
	}{
		{
			description: "sum then mean",
			modes:       []stack.Mode{stack.Sum, stack.Sum, stack.Mean},
			expected:    []float64{0.2, 0.4, 0.2},
		},
		{
			description: "mean then sum",
			modes:       []stack.Mode{stack.Mean, stack.Mean, stack.Sum},
			expected:    []float64{0.2, 0.2, 0.6},
		},
	}
	for _, test := range tests {
		q := queue.New("stack")
		ms := &modeSettings{}
		s := stack.New(q, ms)
		r := &results{}
		s.OnResult(r.frame)
		s.Start()
		for i, m := range test.modes {
			ms.set(m)
			q.Push(newFrame(0.2, 0.2))
			assert.Eventually(t, func() bool { return r.count() == i+1 }, time.Second, time.Millisecond, test.description)
		}
		s.Stop()

		for i, expected := range test.expected {
			assert.InDeltaSlice(t, []float64{expected, expected}, r.frames[i].Pixels, 1e-9, test.description)
		}
	}
}

func TestParseMode(t *testing.T) {
	m, err := stack.ParseMode("mean")
	assert.Nil(t, err)
	assert.Equal(t, stack.Mean, m)

	m, err = stack.ParseMode("sum")
	assert.Nil(t, err)
	assert.Equal(t, stack.Sum, m)

	_, err = stack.ParseMode("median")
	assert.True(t, errors.Is(err, stack.ErrMode))
}

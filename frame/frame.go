// Package frame defines the unit of work that moves through every stage
// of the live stacking pipeline.
package frame

import (
	"time"

	"github.com/rs/xid"
)

// Frame is one image at some point of the pipeline. Pixels are stored
// interleaved, row by row, with values normalized to [0, 1] by the scanner.
//
// A frame is owned by the stage that holds it and is handed off when
// pushed to the next queue.
type Frame struct {
	ID       string
	Pixels   []float64
	Width    int
	Height   int
	Channels int
	// Origin is the path the frame was read from, if any.
	Origin string
	// Destination is set only when the frame is bound for persistence.
	Destination string
	CreatedAt   time.Time
}

// New creates a frame with a new unique id.
func New(width, height, channels int, pixels []float64) *Frame {
	return &Frame{
		ID:        newUID(),
		Pixels:    pixels,
		Width:     width,
		Height:    height,
		Channels:  channels,
		CreatedAt: time.Now(),
	}
}

// newUID returns new unique id value.
func newUID() string {
	return xid.New().String()
}

// Clone returns an independent copy of the frame. Pixels are copied, so
// mutations of the clone never reach the original. The clone keeps the
// id of the original frame: it is the same logical image.
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	c := *f
	if f.Pixels != nil {
		c.Pixels = make([]float64, len(f.Pixels))
		copy(c.Pixels, f.Pixels)
	}
	return &c
}

// Len returns expected number of values for the frame geometry.
func (f *Frame) Len() int {
	return f.Width * f.Height * f.Channels
}

// SameGeometry checks if two frames can be combined pixel by pixel.
func (f *Frame) SameGeometry(o *Frame) bool {
	return f.Width == o.Width && f.Height == o.Height && f.Channels == o.Channels
}

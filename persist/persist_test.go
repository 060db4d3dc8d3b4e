package persist_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/persist"
	"github.com/dudk/livestack/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWriteRead(t *testing.T) {
	var tests = []struct {
		file     string
		channels int
		pixels   []float64
		delta    float64
	}{
		{
			file:     "gray.png",
			channels: 1,
			pixels:   []float64{0, 0.25, 0.5, 1},
			delta:    1e-4,
		},
		{
			file:     "rgb.tiff",
			channels: 3,
			pixels:   []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1, 1},
			delta:    1e-4,
		},
		{
			file:     "gray.jpg",
			channels: 1,
			pixels:   []float64{0.5, 0.5, 0.5, 0.5},
			delta:    0.02,
		},
	}
	dir := t.TempDir()
	for _, test := range tests {
		f := frame.New(2, 2, test.channels, test.pixels)
		f.Destination = filepath.Join(dir, test.file)
		require.Nil(t, persist.Write(f), test.file)

		read, err := persist.Read(f.Destination)
		require.Nil(t, err, test.file)
		assert.Equal(t, 2, read.Width, test.file)
		assert.Equal(t, 2, read.Height, test.file)
		assert.Equal(t, test.channels, read.Channels, test.file)
		assert.Equal(t, f.Destination, read.Origin, test.file)
		assert.InDeltaSlice(t, test.pixels, read.Pixels, test.delta, test.file)
	}

	// no temporary files left behind.
	entries, err := os.ReadDir(dir)
	assert.Nil(t, err)
	assert.Equal(t, len(tests), len(entries))
}

func TestWriteErrors(t *testing.T) {
	dir := t.TempDir()
	var tests = []struct {
		frame *frame.Frame
		dest  string
		err   error
	}{
		{
			frame: frame.New(1, 1, 1, []float64{1}),
			err:   persist.ErrNoDestination,
		},
		{
			frame: frame.New(1, 1, 1, []float64{1}),
			dest:  filepath.Join(dir, "image.fits"),
			err:   persist.ErrFormat,
		},
		{
			frame: frame.New(1, 1, 2, []float64{1, 1}),
			dest:  filepath.Join(dir, "image.png"),
			err:   persist.ErrChannels,
		},
	}
	for _, test := range tests {
		test.frame.Destination = test.dest
		err := persist.Write(test.frame)
		assert.True(t, errors.Is(err, test.err), "expected %v got %v", test.err, err)
	}
	assert.NotNil(t, persist.Write(&frame.Frame{Width: 2, Height: 2, Channels: 1, Destination: filepath.Join(dir, "short.png")}))

	_, err := persist.Read(filepath.Join(dir, "missing.png"))
	assert.NotNil(t, err)
	_, err = persist.Read(filepath.Join(dir, "image.fits"))
	assert.True(t, errors.Is(err, persist.ErrFormat))

	assert.True(t, persist.Supported("a.TIF"))
	assert.True(t, persist.Supported("a.jpeg"))
	assert.False(t, persist.Supported("a.cr2"))
}

// Persister keeps draining after a failed frame.
func TestPersister(t *testing.T) {
	dir := t.TempDir()
	q := queue.New("save")
	p := persist.New(q)
	p.Start()
	defer p.Stop()

	broken := frame.New(1, 1, 1, []float64{1})
	broken.Destination = filepath.Join(dir, "missing", "broken.png")
	q.Push(broken)

	good := frame.New(1, 1, 1, []float64{1})
	good.Destination = filepath.Join(dir, "good.png")
	q.Push(good)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(good.Destination)
		return err == nil
	}, time.Second, time.Millisecond)
	assert.True(t, p.IsRunning())
}

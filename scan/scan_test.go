package scan_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/persist"
	"github.com/dudk/livestack/scan"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type frames struct {
	m    sync.Mutex
	list []*frame.Frame
}

func (fs *frames) add(f *frame.Frame) {
	fs.m.Lock()
	fs.list = append(fs.list, f)
	fs.m.Unlock()
}

func (fs *frames) origins() []string {
	fs.m.Lock()
	defer fs.m.Unlock()
	o := make([]string, 0, len(fs.list))
	for _, f := range fs.list {
		o = append(o, filepath.Base(f.Origin))
	}
	return o
}

func writeImage(t *testing.T, path string) {
	f := frame.New(2, 2, 1, []float64{0, 0.5, 0.5, 1})
	f.Destination = path
	require.Nil(t, persist.Write(f))
}

func TestFolder(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "old.png"))

	s := scan.NewFolder(dir, scan.WithInterval(5*time.Millisecond))
	fs := &frames{}
	s.OnFrame(fs.add)
	require.Nil(t, s.Start())
	require.Nil(t, s.Start())
	assert.True(t, s.IsRunning())

	writeImage(t, filepath.Join(dir, "b.png"))
	writeImage(t, filepath.Join(dir, "a.tiff"))
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("seeing 2/5"), 0o644))

	assert.Eventually(t, func() bool { return len(fs.origins()) == 2 }, time.Second, time.Millisecond)
	// files are never read twice.
	time.Sleep(30 * time.Millisecond)
	assert.ElementsMatch(t, []string{"a.tiff", "b.png"}, fs.origins())

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
}

func TestFolderResume(t *testing.T) {
	dir := t.TempDir()
	s := scan.NewFolder(dir, scan.WithInterval(5*time.Millisecond))
	fs := &frames{}
	s.OnFrame(fs.add)
	require.Nil(t, s.Start())
	s.Stop()

	// files written while stopped are treated as existing.
	writeImage(t, filepath.Join(dir, "while-stopped.png"))
	require.Nil(t, s.Start())
	writeImage(t, filepath.Join(dir, "after.png"))
	assert.Eventually(t, func() bool { return len(fs.origins()) == 1 }, time.Second, time.Millisecond)
	s.Stop()
	assert.Equal(t, []string{"after.png"}, fs.origins())
}

func TestFolderStartError(t *testing.T) {
	s := scan.NewFolder(filepath.Join(t.TempDir(), "missing"))
	err := s.Start()
	assert.True(t, errors.Is(err, scan.ErrStart))
	assert.False(t, s.IsRunning())
	s.Stop()
}

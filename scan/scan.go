// Package scan provides input scanners: sources of raw frames.
//
// A scanner delivers frames asynchronously to its subscribers. Start fails
// with ErrStart when the underlying source can't be opened; Stop is
// always safe to call.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/log"
	"github.com/dudk/livestack/persist"
)

// ErrStart is returned when scanner can't be started.
var ErrStart = errors.New("scanner could not start")

// DefaultInterval between two folder polls.
const DefaultInterval = 500 * time.Millisecond

// Folder scans a directory for new image files. Files present when the
// scanner starts are ignored. A file is read once its size is the same
// in two consequent polls, so files still being written are skipped.
type Folder struct {
	path     string
	interval time.Duration
	log      log.Logger

	sm   sync.RWMutex
	subs []func(*frame.Frame)

	m      sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option provides a way to set functional parameters to folder scanner.
type Option func(f *Folder)

// WithLogger sets logger to folder scanner.
func WithLogger(logger log.Logger) Option {
	return func(f *Folder) {
		f.log = logger
	}
}

// WithInterval sets poll interval.
func WithInterval(d time.Duration) Option {
	return func(f *Folder) {
		if d > 0 {
			f.interval = d
		}
	}
}

// NewFolder creates a new stopped folder scanner.
func NewFolder(path string, options ...Option) *Folder {
	f := &Folder{
		path:     path,
		interval: DefaultInterval,
		log:      log.Silent,
	}
	for _, option := range options {
		option(f)
	}
	return f
}

// OnFrame registers frame subscriber.
func (f *Folder) OnFrame(fn func(*frame.Frame)) {
	f.sm.Lock()
	defer f.sm.Unlock()
	f.subs = append(f.subs, fn)
}

// Start polling. Subsequent calls do nothing while scanner is running.
func (f *Folder) Start() error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.done != nil {
		return nil
	}
	entries, err := os.ReadDir(f.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStart, err)
	}
	known := make(map[string]int64, len(entries))
	for _, e := range entries {
		known[e.Name()] = -1
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.poll(ctx, f.done, known)
	f.log.Info(fmt.Sprintf("Scanning folder %s", f.path))
	return nil
}

// Stop polling and wait until scanner goroutine exits.
func (f *Folder) Stop() {
	f.m.Lock()
	defer f.m.Unlock()
	if f.done == nil {
		return
	}
	f.cancel()
	<-f.done
	f.done = nil
	f.cancel = nil
}

// IsRunning checks if scanner is polling.
func (f *Folder) IsRunning() bool {
	f.m.Lock()
	defer f.m.Unlock()
	return f.done != nil
}

// poll the folder until ctx is done. known maps file name to the size
// seen on previous poll; -1 marks files which are already handled.
func (f *Folder) poll(ctx context.Context, done chan struct{}, known map[string]int64) {
	defer close(done)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, path := range f.ready(known) {
				fr, err := persist.Read(path)
				if err != nil {
					f.log.Warn(fmt.Sprintf("Could not read %s: %v", path, err))
					continue
				}
				f.log.Debug(fmt.Sprintf("New frame read from %s", path))
				f.emit(fr)
			}
		}
	}
}

// ready returns sorted paths of files with stable size.
func (f *Folder) ready(known map[string]int64) []string {
	entries, err := os.ReadDir(f.path)
	if err != nil {
		f.log.Warn(fmt.Sprintf("Could not list %s: %v", f.path, err))
		return nil
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !persist.Supported(e.Name()) {
			continue
		}
		prev, ok := known[e.Name()]
		if prev < 0 {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size := info.Size()
		if ok && size == prev && size > 0 {
			known[e.Name()] = -1
			paths = append(paths, filepath.Join(f.path, e.Name()))
			continue
		}
		known[e.Name()] = size
	}
	sort.Strings(paths)
	return paths
}

func (f *Folder) emit(fr *frame.Frame) {
	f.sm.RLock()
	defer f.sm.RUnlock()
	for _, fn := range f.subs {
		fn(fr)
	}
}

package livestack

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dudk/livestack/config"
	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/log"
	"github.com/dudk/livestack/persist"
	"github.com/dudk/livestack/process"
	"github.com/dudk/livestack/queue"
	"github.com/dudk/livestack/resources"
	"github.com/dudk/livestack/session"
	"github.com/dudk/livestack/stack"
	"github.com/dudk/livestack/stage"
)

// Stage names.
const (
	PreProcessorName  = "pre-processor"
	PostProcessorName = "post-processor"
)

// Settings gives read access to the configuration.
type Settings interface {
	ScanFolderPath() string
	WorkFolderPath() string
	ImageSaveFormatExt() string
}

// Scanner is the source of raw frames. Start must fail if the source
// can't be opened, Stop must be safe to call on stopped scanner.
type Scanner interface {
	Start() error
	Stop()
	OnFrame(func(*frame.Frame))
}

// Controller wires the stages together and owns the session.
//
//	scanner -> pre-process queue -> pre-processor -> stack queue -> stacker
//	-> process queue -> post-processor -> save queue -> persister
type Controller struct {
	rt       *Runtime
	settings Settings
	scanner  Scanner
	session  *session.Handle

	preProcessor  *stage.Stage
	stacker       *stack.Stacker
	postProcessor *stage.Stage
	persister     *stage.Stage

	preProcessors  []process.Processor
	postProcessors []process.Processor
	aligner        stack.Aligner
	resources      fs.FS
	now            func() time.Time
	log            log.Logger

	sessionID atomic.Value
}

// New creates a controller with stopped session and starts all stages.
// Shutdown must be called to release stage workers.
func New(settings Settings, scanner Scanner, options ...Option) *Controller {
	c := &Controller{
		rt:             newRuntime(),
		settings:       settings,
		scanner:        scanner,
		preProcessors:  []process.Processor{process.Clip()},
		postProcessors: []process.Processor{process.Levels()},
		resources:      resources.FS,
		now:            time.Now,
		log:            log.Silent,
	}
	for _, option := range options {
		option(c)
	}
	c.sessionID.Store("")
	c.session = session.New(hooks{c}, c.log)
	c.rt.session = c.session

	stageLogger := stage.WithLogger(c.log)
	c.preProcessor = stage.New(PreProcessorName, c.rt.PreProcessQueue, process.Chain(c.preProcessors...), stageLogger)
	stackerOptions := []stack.Option{stack.WithLogger(c.log)}
	if c.aligner != nil {
		stackerOptions = append(stackerOptions, stack.WithAligner(c.aligner))
	}
	c.stacker = stack.New(c.rt.StackQueue, c.rt, stackerOptions...)
	c.postProcessor = stage.New(PostProcessorName, c.rt.ProcessQueue, process.Chain(c.postProcessors...), stageLogger)
	c.persister = persist.New(c.rt.SaveQueue, stageLogger)

	c.scanner.OnFrame(c.onNewImageRead)
	c.preProcessor.OnResult(c.onNewPreProcessedImage)
	c.stacker.OnSizeChanged(c.onStackSizeChanged)
	c.stacker.OnResult(c.onNewStackResult)
	c.postProcessor.OnResult(c.onNewProcessResult)
	for _, q := range []*queue.Queue{c.rt.PreProcessQueue, c.rt.StackQueue, c.rt.ProcessQueue, c.rt.SaveQueue} {
		c.logQueueSize(q)
	}

	c.preProcessor.Start()
	c.stacker.Start()
	c.postProcessor.Start()
	c.persister.Start()
	return c
}

// Runtime returns the shared runtime state.
func (c *Controller) Runtime() *Runtime {
	return c.rt
}

// Stacker returns the stacking stage.
func (c *Controller) Stacker() *stack.Stacker {
	return c.stacker
}

// Stages returns all pipeline stages in data flow order.
func (c *Controller) Stages() []*stage.Stage {
	return []*stage.Stage{c.preProcessor, c.stacker.Stage, c.postProcessor, c.persister}
}

// SessionID returns id of the latest cold started session.
func (c *Controller) SessionID() string {
	return c.sessionID.Load().(string)
}

// StartSession starts a stopped session or resumes a paused one. It does
// nothing if session is already running. On failure *SessionError or
// *CriticalFolderMissingError is returned and the session keeps its state.
func (c *Controller) StartSession() error {
	return c.session.Start()
}

// PauseSession stops the scanner. Queues and the stack are preserved.
func (c *Controller) PauseSession() error {
	return c.session.Pause()
}

// StopSession stops the scanner and purges the pre-process queue.
func (c *Controller) StopSession() error {
	return c.session.Stop()
}

// Shutdown stops the session if needed, then stops every stage and waits
// for all of them to exit. It's safe to call more than once.
func (c *Controller) Shutdown() error {
	err := c.session.Shutdown()

	var g errgroup.Group
	for _, s := range c.Stages() {
		g.Go(func() error {
			s.Stop()
			return nil
		})
	}
	_ = g.Wait()
	c.log.Info("All stages stopped")
	return err
}

// PurgePreProcessQueue discards frames waiting for pre-processing.
func (c *Controller) PurgePreProcessQueue() int {
	n := c.rt.PreProcessQueue.Purge()
	c.log.Info(fmt.Sprintf("Pre-process queue purged, %d frames discarded", n))
	return n
}

// PurgeStackQueue discards frames waiting for stacking.
func (c *Controller) PurgeStackQueue() int {
	n := c.rt.StackQueue.Purge()
	c.log.Info(fmt.Sprintf("Stack queue purged, %d frames discarded", n))
	return n
}

// hooks implement session transitions. They're only called from the
// session loop.
type hooks struct {
	c *Controller
}

func (h hooks) ColdStart() error {
	c := h.c
	c.log.Info("Starting new session...")

	folders := []struct {
		role string
		path string
	}{
		{role: "scan", path: c.settings.ScanFolderPath()},
		{role: "work", path: c.settings.WorkFolderPath()},
	}
	for _, folder := range folders {
		if !isDir(folder.path) {
			err := folderMissing(folder.role, folder.path)
			c.log.Error(fmt.Sprintf("Session error. %s : %s", err.Title, err.Message))
			return err
		}
	}

	c.stacker.Reset()

	if err := c.setupWorkFolder(); err != nil {
		return c.sessionError("Work folder could not be prepared", err)
	}
	if err := c.scanner.Start(); err != nil {
		return c.sessionError("Input scanner could not start", err)
	}
	c.log.Info("Input scanner started")

	id := uuid.NewString()
	c.sessionID.Store(id)
	c.logRunningMode(id)
	return nil
}

func (h hooks) Resume() error {
	c := h.c
	c.log.Info("Restarting input scanner ...")
	if err := c.scanner.Start(); err != nil {
		return c.sessionError("Input scanner could not start", err)
	}
	c.log.Info("Input scanner started")
	c.logRunningMode(c.SessionID())
	return nil
}

func (h hooks) Pause() {
	h.c.stopInputScanner()
	h.c.log.Info("Session paused")
}

func (h hooks) Stop() {
	h.c.stopInputScanner()
	h.c.PurgePreProcessQueue()
	h.c.log.Info("Session stopped")
}

func (c *Controller) stopInputScanner() {
	c.scanner.Stop()
	c.log.Info("Input scanner stopped")
}

func (c *Controller) logRunningMode(id string) {
	mode := string(c.rt.StackingMode())
	if c.rt.AlignBeforeStacking() {
		mode += " with alignment"
	} else {
		mode += " without alignment"
	}
	c.log.Info(fmt.Sprintf("Session %s running in mode %s", id, mode))
}

// sessionError logs and wraps the cause.
func (c *Controller) sessionError(message string, err error) *SessionError {
	c.log.Error(fmt.Sprintf("Session error. %s : %v", message, err))
	return &SessionError{
		Message: message,
		Err:     err,
	}
}

// setupWorkFolder copies the web page and the placeholder image into the
// work folder.
func (c *Controller) setupWorkFolder() error {
	work := c.settings.WorkFolderPath()
	if err := copyResource(c.resources, resources.Index, filepath.Join(work, resources.Index)); err != nil {
		return err
	}
	standby := filepath.Join(work, config.WebServedImageFileNameBase+"."+config.ImageSaveJPEG)
	return copyResource(c.resources, resources.Waiting, standby)
}

func copyResource(fsys fs.FS, name, dest string) error {
	src, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err = io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func (c *Controller) logQueueSize(q *queue.Queue) {
	name := q.Name()
	q.Subscribe(func(size int) {
		c.log.Debug(fmt.Sprintf("%s queue size: %d", name, size))
	})
}

func (c *Controller) onNewImageRead(f *frame.Frame) {
	c.rt.PreProcessQueue.Push(f)
}

func (c *Controller) onNewPreProcessedImage(f *frame.Frame) {
	c.rt.StackQueue.Push(f)
}

func (c *Controller) onStackSizeChanged(size int) {
	c.rt.stackSize.Store(int64(size))
}

func (c *Controller) onNewStackResult(f *frame.Frame) {
	c.rt.stackResult.Store(f.Clone())
	c.rt.ProcessQueue.Push(f)
}

func (c *Controller) onNewProcessResult(f *frame.Frame) {
	c.rt.processResult.Store(f)
	c.saveProcessResult(f)
}

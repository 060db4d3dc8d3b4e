package livestack

import (
	"sync/atomic"

	"github.com/dudk/livestack/frame"
	"github.com/dudk/livestack/queue"
	"github.com/dudk/livestack/session"
	"github.com/dudk/livestack/stack"
)

// Queue names.
const (
	PreProcessQueueName = "pre-process"
	StackQueueName      = "stack"
	ProcessQueueName    = "process"
	SaveQueueName       = "save"
)

// Runtime is the state shared by the controller and all stages. Every
// field has one writer: session status is written by the session loop,
// stack size by the stacker, queue sizes by their queues, results by the
// controller routing and flags by the user through setters. Reads are
// lock free and eventually consistent.
type Runtime struct {
	session *session.Handle

	PreProcessQueue *queue.Queue
	StackQueue      *queue.Queue
	ProcessQueue    *queue.Queue
	SaveQueue       *queue.Queue

	stackingMode        atomic.Value
	alignBeforeStacking atomic.Bool
	saveEveryImage      atomic.Bool
	webServerActive     atomic.Bool

	stackResult   atomic.Pointer[frame.Frame]
	processResult atomic.Pointer[frame.Frame]

	stackSize           atomic.Int64
	preProcessQueueSize atomic.Int64
	stackQueueSize      atomic.Int64
	processQueueSize    atomic.Int64
	saveQueueSize       atomic.Int64
}

// newRuntime creates runtime with four empty queues, stopped session
// must be attached by the controller.
func newRuntime() *Runtime {
	rt := &Runtime{
		PreProcessQueue: queue.New(PreProcessQueueName),
		StackQueue:      queue.New(StackQueueName),
		ProcessQueue:    queue.New(ProcessQueueName),
		SaveQueue:       queue.New(SaveQueueName),
	}
	rt.stackingMode.Store(stack.Mean)
	rt.PreProcessQueue.Subscribe(storeSize(&rt.preProcessQueueSize))
	rt.StackQueue.Subscribe(storeSize(&rt.stackQueueSize))
	rt.ProcessQueue.Subscribe(storeSize(&rt.processQueueSize))
	rt.SaveQueue.Subscribe(storeSize(&rt.saveQueueSize))
	return rt
}

func storeSize(v *atomic.Int64) queue.SizeFunc {
	return func(size int) {
		v.Store(int64(size))
	}
}

// Session returns current session status.
func (rt *Runtime) Session() session.Status {
	return rt.session.Status()
}

// StackingMode returns current stacking mode.
func (rt *Runtime) StackingMode() stack.Mode {
	return rt.stackingMode.Load().(stack.Mode)
}

// SetStackingMode changes stacking mode. It applies to the next stacked frame.
func (rt *Runtime) SetStackingMode(m stack.Mode) {
	rt.stackingMode.Store(m)
}

// AlignBeforeStacking checks if frames are aligned before stacking.
func (rt *Runtime) AlignBeforeStacking() bool {
	return rt.alignBeforeStacking.Load()
}

// SetAlignBeforeStacking enables or disables alignment.
func (rt *Runtime) SetAlignBeforeStacking(v bool) {
	rt.alignBeforeStacking.Store(v)
}

// SaveEveryImage checks if timestamped copy of every result is saved.
func (rt *Runtime) SaveEveryImage() bool {
	return rt.saveEveryImage.Load()
}

// SetSaveEveryImage enables or disables timestamped copies.
func (rt *Runtime) SetSaveEveryImage(v bool) {
	rt.saveEveryImage.Store(v)
}

// WebServerActive checks if web server is serving the work folder.
func (rt *Runtime) WebServerActive() bool {
	return rt.webServerActive.Load()
}

// SetWebServerActive is called by the web server when it starts or stops.
func (rt *Runtime) SetWebServerActive(v bool) {
	rt.webServerActive.Store(v)
}

// StackResult returns the latest stack result or nil.
func (rt *Runtime) StackResult() *frame.Frame {
	return rt.stackResult.Load()
}

// ProcessResult returns the latest post-process result or nil.
func (rt *Runtime) ProcessResult() *frame.Frame {
	return rt.processResult.Load()
}

// StackSize returns number of frames in the current stack.
func (rt *Runtime) StackSize() int {
	return int(rt.stackSize.Load())
}

// PreProcessQueueSize returns last reported size of pre-process queue.
func (rt *Runtime) PreProcessQueueSize() int {
	return int(rt.preProcessQueueSize.Load())
}

// StackQueueSize returns last reported size of stack queue.
func (rt *Runtime) StackQueueSize() int {
	return int(rt.stackQueueSize.Load())
}

// ProcessQueueSize returns last reported size of process queue.
func (rt *Runtime) ProcessQueueSize() int {
	return int(rt.processQueueSize.Load())
}

// SaveQueueSize returns last reported size of save queue.
func (rt *Runtime) SaveQueueSize() int {
	return int(rt.saveQueueSize.Load())
}

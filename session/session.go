// Package session implements the life-cycle state machine of a live
// stacking session.
//
// All transitions are executed by a single loop goroutine, so only one
// transition is in flight at a time. Callers send events and block until
// the loop reports the result of the transition.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dudk/livestack/log"
)

// ErrClosed is returned when event is sent after shutdown.
var ErrClosed = errors.New("session is shut down")

// Status of the session.
type Status int32

// Session statuses.
const (
	Stopped Status = iota
	Running
	Paused
)

// String returns status name.
func (s Status) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Hooks are side effects of transitions. Errors returned by ColdStart and
// Resume cancel the transition: the session stays in its prior state.
type Hooks interface {
	// ColdStart is called on stopped to running transition.
	ColdStart() error
	// Resume is called on paused to running transition.
	Resume() error
	// Pause is called on running to paused transition.
	Pause()
	// Stop is called when running or paused session is stopped.
	Stop()
}

// Handle manages the life-cycle of the session.
type Handle struct {
	hooks Hooks
	log   log.Logger
	// events is created in constructor and never closed.
	events chan event
	// done is closed when loop exits.
	done   chan struct{}
	status atomic.Int32
}

// state identifies one of the possible states session can be in.
type state interface {
	status() Status
	transition(*Handle, eventType) (state, error)
}

// states
type (
	stopped struct{}
	running struct{}
	paused  struct{}
)

type eventType int

// types of events.
const (
	start eventType = iota
	pause
	stop
	shutdown
)

// String returns event name.
func (e eventType) String() string {
	switch e {
	case start:
		return "start"
	case pause:
		return "pause"
	case stop:
		return "stop"
	case shutdown:
		return "shutdown"
	}
	return "unknown"
}

// event is passed into handle's event channel when user does some action.
type event struct {
	eventType
	// feedback is used to give the result of transition to the caller.
	// It's closed after the result is sent.
	feedback chan error
}

// New creates a stopped session handle and starts its loop. Shutdown
// must be called to release the loop goroutine.
func New(hooks Hooks, logger log.Logger) *Handle {
	if logger == nil {
		logger = log.Silent
	}
	h := &Handle{
		hooks:  hooks,
		log:    logger,
		events: make(chan event),
		done:   make(chan struct{}),
	}
	h.status.Store(int32(Stopped))
	go loop(h)
	return h
}

// Status returns current status. It's safe to call from any goroutine.
func (h *Handle) Status() Status {
	return Status(h.status.Load())
}

// Start sends start event. A stopped session is cold started, a paused one
// is resumed and a running one is left untouched.
func (h *Handle) Start() error {
	return h.send(start)
}

// Pause sends pause event.
func (h *Handle) Pause() error {
	return h.send(pause)
}

// Stop sends stop event.
func (h *Handle) Stop() error {
	return h.send(stop)
}

// Shutdown stops the session if needed and terminates the loop.
// Consequent calls do nothing.
func (h *Handle) Shutdown() error {
	if err := h.send(shutdown); err != ErrClosed {
		return err
	}
	return nil
}

// Done is closed when handle is shut down.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// send the event and wait for the result of transition.
func (h *Handle) send(t eventType) error {
	e := event{
		eventType: t,
		feedback:  make(chan error, 1),
	}
	select {
	case h.events <- e:
	case <-h.done:
		return ErrClosed
	}
	return Wait(e.feedback)
}

// Wait for transition result.
func Wait(d chan error) error {
	for err := range d {
		if err != nil {
			return err
		}
	}
	return nil
}

// loop listens until nil state is returned.
func loop(h *Handle) {
	defer close(h.done)
	var s state = stopped{}
	for s != nil {
		e := <-h.events
		newState, err := s.transition(h, e.eventType)
		if err != nil {
			e.feedback <- err
		} else {
			if newState != nil {
				h.status.Store(int32(newState.status()))
			} else {
				h.status.Store(int32(Stopped))
			}
			if s != newState {
				h.log.Debug(fmt.Sprintf("session %v: %v -> %v", e.eventType, s.status(), statusOf(newState)))
			}
			s = newState
		}
		close(e.feedback)
	}
}

func statusOf(s state) string {
	if s == nil {
		return "shut down"
	}
	return s.status().String()
}

func (stopped) status() Status {
	return Stopped
}

func (s stopped) transition(h *Handle, e eventType) (state, error) {
	switch e {
	case start:
		if err := h.hooks.ColdStart(); err != nil {
			return s, err
		}
		return running{}, nil
	case shutdown:
		return nil, nil
	}
	// pause and stop do nothing on stopped session.
	return s, nil
}

func (running) status() Status {
	return Running
}

func (s running) transition(h *Handle, e eventType) (state, error) {
	switch e {
	case pause:
		h.hooks.Pause()
		return paused{}, nil
	case stop:
		h.hooks.Stop()
		return stopped{}, nil
	case shutdown:
		h.hooks.Stop()
		return nil, nil
	}
	// already running.
	return s, nil
}

func (paused) status() Status {
	return Paused
}

func (s paused) transition(h *Handle, e eventType) (state, error) {
	switch e {
	case start:
		if err := h.hooks.Resume(); err != nil {
			return s, err
		}
		return running{}, nil
	case stop:
		h.hooks.Stop()
		return stopped{}, nil
	case shutdown:
		h.hooks.Stop()
		return nil, nil
	}
	// already paused.
	return s, nil
}

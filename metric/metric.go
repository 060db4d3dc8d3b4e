// Package metric exposes per-stage counters through expvar.
package metric

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const stagesLabel = "livestack.stages"

const (
	// FrameCounter measures number of processed frames.
	FrameCounter = "Frames"
	// FailureCounter measures number of frames dropped because of errors.
	FailureCounter = "Failures"
	// LatencyCounter measures time between two consequent frames.
	LatencyCounter = "Latency"
	// DurationCounter accumulates time spent processing frames.
	DurationCounter = "Duration"
	// StageCounter counts number of stage instances.
	StageCounter = "Stages"
)

var (
	stages = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		FrameCounter,
		FailureCounter,
		LatencyCounter,
		DurationCounter,
		StageCounter,
	}
)

// Get metrics values for provided stage name.
func Get(stage string) map[string]string {
	return getCounters(stage)
}

// GetAll returns counters for all measured stages.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	stages.Lock()
	defer stages.Unlock()
	for stage := range stages.m {
		m[stage] = getCounters(stage)
	}
	return m
}

func getCounters(stage string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(stage, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// MeasureFunc captures metrics when a frame is processed. Processing
// started at the provided time, err is the result of processing.
type MeasureFunc func(started time.Time, err error)

// Meter creates new meter closure to capture stage counters.
func Meter(stage string) MeasureFunc {
	metric := stages.get(stage)
	metric.stages.Add(1)
	var (
		m        sync.Mutex
		calledAt time.Time
	)
	return func(started time.Time, err error) {
		now := time.Now()
		m.Lock()
		if !calledAt.IsZero() {
			metric.latency.set(now.Sub(calledAt))
		}
		calledAt = now
		m.Unlock()
		metric.duration.add(now.Sub(started))
		if err != nil {
			metric.failures.Add(1)
			return
		}
		metric.frames.Add(1)
	}
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(stage string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[stage]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(stage)
	m.m[stage] = metric
	return metric
}

type metric struct {
	stages   *expvar.Int
	frames   *expvar.Int
	failures *expvar.Int
	latency  *duration
	duration *duration
}

func newMetric(stage string) metric {
	m := metric{
		stages:   expvar.NewInt(key(stage, StageCounter)),
		frames:   expvar.NewInt(key(stage, FrameCounter)),
		failures: expvar.NewInt(key(stage, FailureCounter)),
		latency:  &duration{},
		duration: &duration{},
	}
	expvar.Publish(key(stage, LatencyCounter), m.latency)
	expvar.Publish(key(stage, DurationCounter), m.duration)
	return m
}

func key(stage, counter string) string {
	return fmt.Sprintf("%s.%s.%s", stagesLabel, stage, counter)
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)))
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}

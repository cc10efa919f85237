// Package common provides stage timing and runtime statistics shared by the
// pipeline and its drivers.
package common

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Timer measures one named stage.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewNamedTimer starts a timer for the given stage name.
func NewNamedTimer(name string) *Timer {
	return &Timer{
		name:  name,
		start: time.Now(),
	}
}

// Stop stops the timer and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the recorded duration (only valid after Stop()).
func (t *Timer) Duration() time.Duration {
	return t.duration
}

// Name returns the stage name.
func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	return fmt.Sprintf("%s: %v", t.name, t.duration)
}

// StageTiming is a finished stage measurement.
type StageTiming struct {
	Stage    string        `json:"stage" yaml:"stage"`
	Duration time.Duration `json:"duration_ns" yaml:"duration_ns"`
}

// Timings collects stage durations in the order stages finished.
// It is safe for concurrent use.
type Timings struct {
	mu     sync.Mutex
	stages []StageTiming
}

// Start begins timing a stage. Call the returned function when the stage ends.
func (ts *Timings) Start(stage string) func() time.Duration {
	t := NewNamedTimer(stage)
	return func() time.Duration {
		d := t.Stop()
		ts.mu.Lock()
		ts.stages = append(ts.stages, StageTiming{Stage: t.Name(), Duration: d})
		ts.mu.Unlock()
		return d
	}
}

// Stages returns a copy of the recorded measurements.
func (ts *Timings) Stages() []StageTiming {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]StageTiming, len(ts.stages))
	copy(out, ts.stages)
	return out
}

// Total sums all recorded stage durations.
func (ts *Timings) Total() time.Duration {
	var total time.Duration
	for _, s := range ts.Stages() {
		total += s.Duration
	}
	return total
}

func (ts *Timings) String() string {
	stages := ts.Stages()
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, fmt.Sprintf("%s=%v", s.Stage, s.Duration.Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}

// Package synth implements the synthesis engine: per-note voices modeling a
// plucked string, sample-accurate gain scheduling, and the engine that owns
// the active voices and mixes them into the output.
package synth

import (
	"math"
	"sort"
)

// RampKind selects the interpolation shape of a scheduled gain ramp.
type RampKind int

const (
	RampLinear RampKind = iota
	RampExponential
)

// expFloor is the smallest value an exponential ramp can pass through; an
// exponential approach to exactly zero would never arrive.
const expFloor = 1e-6

type gainEvent struct {
	time  float64
	value float64
	ramp  bool
	kind  RampKind
}

// ScheduledGain is a gain control whose value can be set and ramped at
// scheduled times, evaluated sample-accurately during rendering. It is the
// render-callback realization of a scheduled output-pipeline envelope: set,
// ramp and cancel operations all take effect at the given time on the owning
// engine's clock.
//
// ScheduledGain is not safe for concurrent use; the engine serializes access
// with its own lock.
type ScheduledGain struct {
	initial float64
	events  []gainEvent
}

func NewScheduledGain(value float64) *ScheduledGain {
	return &ScheduledGain{initial: value}
}

// SetValueAt schedules an instantaneous jump to value at time t.
func (g *ScheduledGain) SetValueAt(value, t float64) {
	g.insert(gainEvent{time: t, value: value})
}

// RampTo schedules a ramp ending with value at time t, starting from wherever
// the previous scheduled event left the gain.
func (g *ScheduledGain) RampTo(value, t float64, kind RampKind) {
	g.insert(gainEvent{time: t, value: value, ramp: true, kind: kind})
}

// CancelAt drops every event scheduled at or after time t. The gain then
// holds the value it had at t.
func (g *ScheduledGain) CancelAt(t float64) {
	held := g.ValueAt(t)
	i := sort.Search(len(g.events), func(i int) bool { return g.events[i].time >= t })
	g.events = g.events[:i]
	// pin the held value so a ramp that was cut short does not snap back
	g.insert(gainEvent{time: t, value: held})
}

// ValueAt evaluates the gain at time t.
func (g *ScheduledGain) ValueAt(t float64) float64 {
	prevValue, prevTime := g.initial, math.Inf(-1)
	for _, ev := range g.events {
		if ev.time > t {
			if !ev.ramp {
				return prevValue
			}
			return interpolate(prevValue, prevTime, ev, t)
		}
		prevValue, prevTime = ev.value, ev.time
	}
	return prevValue
}

func interpolate(v0, t0 float64, ev gainEvent, t float64) float64 {
	if math.IsInf(t0, -1) || ev.time <= t0 {
		return ev.value
	}
	frac := (t - t0) / (ev.time - t0)
	if ev.kind == RampExponential {
		a, b := math.Max(v0, expFloor), math.Max(ev.value, expFloor)
		return a * math.Pow(b/a, frac)
	}
	return v0 + (ev.value-v0)*frac
}

func (g *ScheduledGain) insert(ev gainEvent) {
	i := sort.Search(len(g.events), func(i int) bool { return g.events[i].time > ev.time })
	g.events = append(g.events, gainEvent{})
	copy(g.events[i+1:], g.events[i:])
	g.events[i] = ev
}

package synth

import (
	"math"

	"github.com/mkarvonen/tabsynth"
)

// PluckedVoice models a plucked string with a resonant delay line, in the
// Karplus-Strong family: a circular buffer one period long is seeded with a
// velocity-scaled noise burst concentrated near the pluck position, then fed
// back through a two-point average low-pass and the string's damping factor.
// The filtered value becomes next cycle's input, so damping strictly < 1
// guarantees a terminating, decaying tone. Wound strings run an extra
// one-pole smoother in the loop, losing bright partials faster.
type PluckedVoice struct {
	sampleRate int
	params     tabsynth.StringParams

	delay   []float32
	pos     int
	onePole float32

	started   bool
	startTime float64
	stopTime  float64
	rendered  int

	fade     float64
	fadeCoef float64
	level    float32

	randState uint32
}

const (
	// minDelayLen keeps the delay line long enough that even the highest
	// frets stay numerically stable.
	minDelayLen = 64

	// releaseTau is the time constant of the fade triggered by Stop;
	// fast enough to cut the note, slow enough not to click.
	releaseTau = 0.015

	// silenceLevel is the output level below which a voice counts as decayed.
	silenceLevel = 1e-4
)

func NewPluckedVoice(params tabsynth.StringParams, sampleRate int) *PluckedVoice {
	return &PluckedVoice{
		sampleRate: sampleRate,
		params:     params,
		randState:  1,
	}
}

// Start seeds the delay line for the given fundamental and marks the onset.
// Calling Start twice, or with a non-positive frequency, is a no-op.
func (v *PluckedVoice) Start(frequency, velocity, startTime float64) {
	if v.started || frequency <= 0 {
		return
	}
	v.started = true
	v.startTime = startTime
	v.stopTime = math.Inf(1)
	v.fade = 1
	v.fadeCoef = math.Exp(-1 / (releaseTau * float64(v.sampleRate)))
	v.level = 1

	n := int(float64(v.sampleRate)/frequency + 0.5)
	if n < minDelayLen {
		n = minDelayLen
	}
	v.delay = make([]float32, n)
	pluckEnd := int(v.params.PluckPosition * float64(n))
	for i := range v.delay {
		amp := velocity
		if i > pluckEnd {
			// the excitation concentrates near the pick position
			amp *= 0.3
		}
		v.delay[i] = float32(amp * v.noise())
	}
}

// Stop schedules the release fade; samples rendered at or after atTime decay
// with the release time constant.
func (v *PluckedVoice) Stop(atTime float64) {
	if atTime < v.stopTime {
		v.stopTime = atTime
	}
}

// Render generates the next len(buf) samples of the string loop.
func (v *PluckedVoice) Render(buf []float32) {
	if !v.started {
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	n := len(v.delay)
	damping := float32(v.params.Damping)
	srate := float64(v.sampleRate)
	for i := range buf {
		cur := v.delay[v.pos]
		next := v.delay[(v.pos+1)%n]
		fb := 0.5 * (cur + next) * damping
		if v.params.Wound {
			fb = 0.7*fb + 0.3*v.onePole
			v.onePole = fb
		}
		v.delay[v.pos] = fb
		v.pos++
		if v.pos == n {
			v.pos = 0
		}

		if v.startTime+float64(v.rendered)/srate >= v.stopTime {
			v.fade *= v.fadeCoef
		}
		out := cur * float32(v.fade)
		buf[i] = out
		v.rendered++

		if a := abs32(out); a > v.level {
			v.level = a
		} else {
			v.level *= 0.99995
		}
	}
}

// Active reports whether the string still rings. The level follower needs a
// couple of periods to settle, so a voice is never reaped before it has
// rendered two full delay-line lengths.
func (v *PluckedVoice) Active() bool {
	if !v.started {
		return true // pending, parameters not fixed yet
	}
	if v.fade < silenceLevel {
		return false
	}
	if v.rendered < 2*len(v.delay) {
		return true
	}
	return v.level > silenceLevel
}

// noise returns a pseudorandom value in [-1, 1). A plain LCG; audio noise
// does not need crypto quality, but per-voice determinism makes tests stable.
func (v *PluckedVoice) noise() float64 {
	v.randState = v.randState*1664525 + 1013904223
	return float64(int32(v.randState)) / (1 << 31)
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}

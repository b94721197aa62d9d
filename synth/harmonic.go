package synth

import (
	"math"

	"github.com/mkarvonen/tabsynth"
)

// harmonicAmps are the partial amplitudes of the additive model, relative to
// the fundamental.
var harmonicAmps = [5]float64{1.0, 0.6, 0.3, 0.15, 0.1}

const (
	attackTime   = 0.002
	decayTime    = 0.05
	sustainTime  = 0.2
	decayLevel   = 0.4
	vibratoDelay = 0.1
	vibratoRate  = 4.5
	vibratoDepth = 0.005
)

// HarmonicVoice is the additive alternate to PluckedVoice: a bank of five
// oscillators at the fundamental and its integer multiples, shaped by a
// shared pluck envelope, a slow low-depth vibrato and a two-stage filter.
// Wound strings attenuate the partials above the 2nd, as a real wound string
// carries fewer bright overtones.
type HarmonicVoice struct {
	sampleRate int
	params     tabsynth.StringParams

	freq     float64
	velocity float64
	amps     [5]float64
	phases   [5]float64

	lpCoef, hpCoef     float64
	lpState, hpState   float64
	started            bool
	startTime          float64
	stopTime           float64
	rendered           int
}

func NewHarmonicVoice(params tabsynth.StringParams, sampleRate int) *HarmonicVoice {
	return &HarmonicVoice{sampleRate: sampleRate, params: params}
}

func (v *HarmonicVoice) Start(frequency, velocity, startTime float64) {
	if v.started || frequency <= 0 {
		return
	}
	v.started = true
	v.freq = frequency
	v.velocity = velocity
	v.startTime = startTime
	v.stopTime = math.Inf(1)
	v.amps = harmonicAmps
	if v.params.Wound {
		for i := 2; i < len(v.amps); i++ {
			v.amps[i] *= 0.7
		}
	}
	// low-pass at 4x the fundamental for wound strings, 6x for plain ones,
	// then a gentle high-pass at half the fundamental
	lpMul := 6.0
	if v.params.Wound {
		lpMul = 4.0
	}
	v.lpCoef = onePoleCoef(lpMul*frequency, v.sampleRate)
	v.hpCoef = onePoleCoef(0.5*frequency, v.sampleRate)
}

func (v *HarmonicVoice) Stop(atTime float64) {
	if atTime < v.stopTime {
		v.stopTime = atTime
	}
}

func (v *HarmonicVoice) Render(buf []float32) {
	if !v.started {
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	srate := float64(v.sampleRate)
	for i := range buf {
		t := float64(v.rendered) / srate

		f := v.freq
		if t > vibratoDelay {
			f *= 1 + vibratoDepth*math.Sin(2*math.Pi*vibratoRate*(t-vibratoDelay))
		}

		var s float64
		for h := range v.phases {
			v.phases[h] += 2 * math.Pi * f * float64(h+1) / srate
			s += v.amps[h] * math.Sin(v.phases[h])
		}
		s *= v.envelope(t) * v.velocity * 0.35

		v.lpState += v.lpCoef * (s - v.lpState)
		v.hpState += v.hpCoef * (v.lpState - v.hpState)
		buf[i] = float32(v.lpState - v.hpState)

		v.rendered++
	}
}

// envelope evaluates the shared amplitude envelope at t seconds after onset:
// a 2 ms attack, exponential decay to 0.4 by 50 ms, settling to the sustain
// level damping*0.25 by 200 ms, with an exponential release once the stop
// time has passed.
func (v *HarmonicVoice) envelope(t float64) float64 {
	sustain := v.params.Damping * 0.25
	var a float64
	switch {
	case t < attackTime:
		a = t / attackTime
	case t < decayTime:
		a = decayLevel + (1-decayLevel)*math.Exp(-(t-attackTime)/((decayTime-attackTime)/3))
	case t < sustainTime:
		a = sustain + (decayLevel-sustain)*math.Exp(-(t-decayTime)/((sustainTime-decayTime)/3))
	default:
		a = sustain
	}
	if rel := t - (v.stopTime - v.startTime); rel > 0 {
		a *= math.Exp(-rel / releaseTau)
	}
	return a
}

func (v *HarmonicVoice) Active() bool {
	if !v.started {
		return true
	}
	rel := float64(v.rendered)/float64(v.sampleRate) - (v.stopTime - v.startTime)
	return rel <= 0 || math.Exp(-rel/releaseTau) > silenceLevel
}

func onePoleCoef(cutoff float64, sampleRate int) float64 {
	c := 1 - math.Exp(-2*math.Pi*cutoff/float64(sampleRate))
	if c > 1 {
		c = 1
	}
	return c
}

package synth

import (
	"errors"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/mkarvonen/tabsynth"
)

// Synther creates voices; it is the seam between the engine and the chosen
// synthesis strategy.
type Synther interface {
	Voice(params tabsynth.StringParams, sampleRate int) tabsynth.Voice
	Name() string
}

// PluckedSynther creates delay-line voices. This is the default strategy.
type PluckedSynther struct{}

func (PluckedSynther) Voice(params tabsynth.StringParams, sampleRate int) tabsynth.Voice {
	return NewPluckedVoice(params, sampleRate)
}
func (PluckedSynther) Name() string { return "plucked" }

// HarmonicSynther creates additive voices, the alternate strategy behind the
// same Voice interface.
type HarmonicSynther struct{}

func (HarmonicSynther) Voice(params tabsynth.StringParams, sampleRate int) tabsynth.Voice {
	return NewHarmonicVoice(params, sampleRate)
}
func (HarmonicSynther) Name() string { return "harmonic" }

const (
	DefaultSampleRate = 44100

	// DefaultMaxVoices bounds the active voice registry; when full, the
	// oldest voice is stolen rather than letting the set grow without limit.
	DefaultMaxVoices = 32

	// decayTail is the grace period a voice stays registered past its
	// nominal end, to let the natural release ring out.
	decayTail = 0.5

	// stopRampTime is how fast the master output is forced toward silence on
	// an all-sound-off, just slow enough to avoid an audible click.
	stopRampTime = 0.01

	// noteVelocity is the pluck velocity of scheduled notes. The tab format
	// carries no per-note dynamics.
	noteVelocity = 0.9
)

var ErrNotInitialized = errors.New("audio engine not initialized")

type voiceEntry struct {
	voice tabsynth.Voice
	gain  *ScheduledGain
	start float64 // engine time of the first sample, seconds
	end   float64 // start + duration + decayTail
}

// Engine owns the active voices, maps symbolic note events to frequencies and
// per-string parameters, and mixes everything into the output buffer. It is
// safe for concurrent use: note scheduling arrives from the transport
// goroutine while Render is called from the audio output goroutine.
type Engine struct {
	mu          sync.Mutex
	synther     Synther
	sampleRate  int
	maxVoices   int
	initialized bool

	time   float64 // engine clock: seconds of audio rendered so far
	volume float64
	master *ScheduledGain
	voices []*voiceEntry

	scratch, gains, mix []float32
}

type EngineOption func(*Engine)

func WithSampleRate(rate int) EngineOption {
	return func(e *Engine) { e.sampleRate = rate }
}

func WithMaxVoices(n int) EngineOption {
	return func(e *Engine) { e.maxVoices = n }
}

func NewEngine(synther Synther, opts ...EngineOption) *Engine {
	e := &Engine{
		synther:    synther,
		sampleRate: DefaultSampleRate,
		maxVoices:  DefaultMaxVoices,
		volume:     1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize prepares the engine for rendering. Idempotent; initializing an
// already initialized engine is a no-op.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if e.sampleRate <= 0 || e.maxVoices <= 0 {
		return errors.New("invalid engine configuration")
	}
	e.master = NewScheduledGain(e.volume)
	e.initialized = true
	return nil
}

// SampleRate returns the engine's sample rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Now returns the current engine time in seconds: the amount of audio
// rendered so far.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// PlayNote schedules one voice for the note: starting startOffset seconds
// from now, sounding for duration seconds, then released. Rests and notes on
// out-of-range strings are skipped silently; a single bad note must not halt
// a composition.
func (e *Engine) PlayNote(note tabsynth.NoteEvent, startOffset, duration float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	if !note.Sounded() {
		return nil
	}
	if startOffset < 0 {
		startOffset = 0
	}
	freq := tabsynth.Frequency(note.String, note.Fret)
	params := tabsynth.StringParamsFor(note.String)

	voice := e.synther.Voice(params, e.sampleRate)
	start := e.time + startOffset
	voice.Start(freq, noteVelocity, start)
	voice.Stop(start + duration)

	if len(e.voices) >= e.maxVoices {
		e.stealOldest()
	}
	e.voices = append(e.voices, &voiceEntry{
		voice: voice,
		gain:  NewScheduledGain(1),
		start: start,
		end:   start + duration + decayTail,
	})
	return nil
}

// StopAllNotes cancels every registered voice, sounding or merely scheduled.
// The per-voice gains are zeroed at the cancellation instant, the master
// output is ramped to silence within stopRampTime and restored right after,
// and the registry is cleared under the same lock, so a PlayNote issued after
// StopAllNotes returns is never retroactively silenced.
func (e *Engine) StopAllNotes() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return
	}
	now := e.time
	for _, entry := range e.voices {
		entry.gain.CancelAt(now)
		entry.gain.SetValueAt(0, now)
	}
	e.voices = e.voices[:0]
	e.master.CancelAt(now)
	e.master.RampTo(0, now+stopRampTime, RampLinear)
	e.master.SetValueAt(e.volume, now+stopRampTime)
}

// SetMasterVolume clamps v into [0, 1] and applies it immediately, overriding
// any in-flight ramp.
func (e *Engine) SetMasterVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.volume = v
	if e.master != nil {
		e.master.CancelAt(e.time)
		e.master.SetValueAt(v, e.time)
	}
}

// ActiveVoices returns the number of registered voices, sounding or pending.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Render mixes all active voices into the stereo buffer and advances the
// engine clock by its length. Voices whose start still lies beyond the end of
// the buffer are left untouched for a later call; voices that have decayed or
// outlived their grace period are released.
func (e *Engine) Render(buffer tabsynth.AudioBuffer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	n := len(buffer)
	if n == 0 {
		return nil
	}
	e.ensureScratch(n)
	mix := e.mix[:n]
	for i := range mix {
		mix[i] = 0
	}
	dt := 1 / float64(e.sampleRate)
	blockStart := e.time
	blockEnd := blockStart + float64(n)*dt

	kept := e.voices[:0]
	for _, entry := range e.voices {
		startIdx := 0
		if entry.start > blockStart {
			startIdx = int((entry.start-blockStart)*float64(e.sampleRate) + 0.5)
		}
		if startIdx < n {
			seg := e.scratch[:n-startIdx]
			entry.voice.Render(seg)
			gains := e.gains[:len(seg)]
			for i := range gains {
				gains[i] = float32(entry.gain.ValueAt(blockStart + float64(startIdx+i)*dt))
			}
			vek32.Mul_Into(seg, seg, gains)
			vek32.Add_Into(mix[startIdx:], mix[startIdx:], seg)
		}
		if entry.voice.Active() && blockEnd < entry.end {
			kept = append(kept, entry)
		}
	}
	e.voices = kept

	gains := e.gains[:n]
	for i := range gains {
		gains[i] = float32(e.master.ValueAt(blockStart + float64(i)*dt))
	}
	vek32.Mul_Into(mix, mix, gains)

	for i := range buffer {
		buffer[i][0] = mix[i]
		buffer[i][1] = mix[i]
	}
	e.time += float64(n) * dt
	return nil
}

func (e *Engine) ensureScratch(n int) {
	if len(e.scratch) < n {
		e.scratch = make([]float32, n)
		e.gains = make([]float32, n)
		e.mix = make([]float32, n)
	}
}

func (e *Engine) stealOldest() {
	oldest := 0
	for i, entry := range e.voices {
		if entry.start < e.voices[oldest].start {
			oldest = i
		}
	}
	e.voices[oldest].gain.CancelAt(e.time)
	e.voices[oldest].gain.SetValueAt(0, e.time)
	e.voices = append(e.voices[:oldest], e.voices[oldest+1:]...)
}

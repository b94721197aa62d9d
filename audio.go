package tabsynth

import "errors"

// AudioBuffer is a buffer of stereo audio samples of variable length,
// length is defined in number of frames (stereo pairs).
type AudioBuffer [][2]float32

// AudioSink is the output end of the platform audio pipeline. WriteAudio
// blocks until the pipeline has accepted the whole buffer, which is what
// paces an offline renderer to real time.
type AudioSink interface {
	WriteAudio(buffer AudioBuffer) error
	Close() error
}

// AudioContext represents the platform audio system, from which one can
// acquire an output sink.
type AudioContext interface {
	Output() AudioSink
	Close() error
}

// ErrAudioUnavailable is returned when the platform denies or fails to create
// the audio output pipeline. It is surfaced to the caller and never retried
// internally; the caller decides whether and when to try again.
var ErrAudioUnavailable = errors.New("audio output unavailable")

// Voice is one independent sound-generation instance for a single note
// occurrence. A voice's synthesis parameters are fixed for its lifetime;
// there is no re-pitching mid-note.
type Voice interface {
	// Start fixes the voice parameters and marks the onset of the note at
	// startTime, in seconds on the owning engine's clock. Start never blocks.
	Start(frequency, velocity, startTime float64)

	// Stop schedules a fast exponential fade ending the note at atTime. The
	// fade avoids the click an instant cutoff would cause; an emergency
	// all-sound-off is implemented by the engine zeroing the voice gain
	// instead.
	Stop(atTime float64)

	// Render generates the next len(buf) mono samples of the voice,
	// continuing from wherever the previous Render call left off. The first
	// rendered sample corresponds to the voice's startTime.
	Render(buf []float32)

	// Active reports whether the voice still produces audible output. Once
	// false, the voice can be dropped and never becomes active again.
	Active() bool
}

// Mono returns the buffer's left channel as a freshly allocated []float32,
// mainly for analysis in tests.
func (buffer AudioBuffer) Mono() []float32 {
	ret := make([]float32, len(buffer))
	for i, frame := range buffer {
		ret[i] = frame[0]
	}
	return ret
}

package synth

import (
	"fmt"

	"github.com/mkarvonen/tabsynth"
)

const bounceChunk = 1024

// Bounce renders a whole tab offline into a stereo buffer, without any
// real-time clock: every sounding note is scheduled up front at its beat
// position and the engine is rendered for the nominal duration of the tab
// plus the decay tail.
func Bounce(tab *tabsynth.Tab, synther Synther, sampleRate int) (tabsynth.AudioBuffer, error) {
	if err := tab.Validate(); err != nil {
		return nil, fmt.Errorf("Bounce failed: %w", err)
	}
	engine := NewEngine(synther, WithSampleRate(sampleRate), WithMaxVoices(256))
	if err := engine.Initialize(); err != nil {
		return nil, fmt.Errorf("Bounce failed: %w", err)
	}
	spb := tab.SecondsPerBeat()
	for i := range tab.Measures {
		base := float64(i * tabsynth.BeatsPerMeasure)
		for _, note := range tab.Measures[i].Notes {
			if !note.Sounded() {
				continue
			}
			beat := note.GlobalBeat
			if beat == 0 {
				beat = base + note.BeatPosition
			}
			if err := engine.PlayNote(note, beat*spb, note.BeatDuration*spb); err != nil {
				return nil, fmt.Errorf("Bounce failed: %w", err)
			}
		}
	}
	frames := int((tab.Duration() + decayTail) * float64(sampleRate))
	buffer := make(tabsynth.AudioBuffer, 0, frames)
	chunk := make(tabsynth.AudioBuffer, bounceChunk)
	for len(buffer) < frames {
		n := frames - len(buffer)
		if n > bounceChunk {
			n = bounceChunk
		}
		if err := engine.Render(chunk[:n]); err != nil {
			return nil, fmt.Errorf("Bounce failed: %w", err)
		}
		buffer = append(buffer, chunk[:n]...)
	}
	return buffer, nil
}

// Package midi exports a tab to a Standard MIDI File, so a tab can be taken
// into any DAW or notation tool. It maps string/fret pairs to MIDI note
// numbers over the standard tuning and beat positions to metric ticks.
package midi

import (
	"fmt"
	"io"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/mkarvonen/tabsynth"
)

// ticksPerQuarter is the SMF resolution; one beat = one quarter note.
const ticksPerQuarter = 960

// exportVelocity is the fixed note-on velocity; the tab format carries no
// per-note dynamics.
const exportVelocity = 100

type timedMessage struct {
	tick uint32
	off  bool // note-offs sort before note-ons at the same tick
	msg  midi.Message
}

// Export converts a tab into a single-track SMF.
func Export(tab *tabsynth.Tab) (*smf.SMF, error) {
	if err := tab.Validate(); err != nil {
		return nil, fmt.Errorf("midi export failed: %w", err)
	}
	var events []timedMessage
	for i := range tab.Measures {
		base := float64(i * tabsynth.BeatsPerMeasure)
		for _, note := range tab.Measures[i].Notes {
			if !note.Sounded() {
				continue
			}
			key := tabsynth.MIDINote(note.String, note.Fret)
			beat := note.GlobalBeat
			if beat == 0 {
				beat = base + note.BeatPosition
			}
			on := uint32(beat*ticksPerQuarter + 0.5)
			off := uint32((beat+note.BeatDuration)*ticksPerQuarter + 0.5)
			events = append(events,
				timedMessage{tick: on, msg: midi.NoteOn(0, uint8(key), exportVelocity)},
				timedMessage{tick: off, off: true, msg: midi.NoteOff(0, uint8(key))},
			)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(ticksPerQuarter)
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(tab.Title))
	tr.Add(0, smf.MetaTempo(float64(tab.BPM)))
	tr.Add(0, smf.MetaMeter(4, 4))
	var prev uint32
	for _, ev := range events {
		tr.Add(ev.tick-prev, ev.msg)
		prev = ev.tick
	}
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		return nil, fmt.Errorf("midi export failed: %w", err)
	}
	return s, nil
}

// Write exports the tab and writes the SMF bytes to w.
func Write(tab *tabsynth.Tab, w io.Writer) error {
	s, err := Export(tab)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("could not write midi file: %w", err)
	}
	return nil
}

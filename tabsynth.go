package tabsynth

import (
	"errors"
	"fmt"
)

type (
	// NoteEvent is a single symbolic note in a tab: which string is played,
	// at which fret, and where the note sits in musical time. Fret -1 marks a
	// rest; rests are kept in the data so measures round-trip losslessly, but
	// they are never sounded.
	NoteEvent struct {
		String       int     `yaml:"string" json:"string"`
		Fret         int     `yaml:"fret" json:"fret"`
		BeatPosition float64 `yaml:"beatposition" json:"beatPosition"`
		BeatDuration float64 `yaml:"beatduration" json:"beatDuration"`

		// GlobalBeat is the position of the note in beats from the start of
		// the whole tab. Zero means "not set"; use Tab.FillGlobalBeats to
		// derive it from the measure index and BeatPosition.
		GlobalBeat float64 `yaml:"globalbeat,omitempty" json:"globalBeatPosition,omitempty"`
	}

	// TimeSignature is kept for round-tripping tab files. The playback
	// engine itself runs in common time; see BeatsPerMeasure.
	TimeSignature struct {
		Numerator   int `yaml:"numerator" json:"numerator"`
		Denominator int `yaml:"denominator" json:"denominator"`
	}

	// Measure is an ordered list of notes with an optional time signature.
	// An empty time signature means 4/4.
	Measure struct {
		TimeSignature TimeSignature `yaml:"timesignature,omitempty" json:"timeSignature,omitempty"`
		Notes         []NoteEvent   `yaml:"notes" json:"notes"`
	}

	// Tab is a complete composition: a list of measures plus the nominal
	// tempo. Currently, BPM is an integer as it offers already quite much
	// granularity for controlling the playback speed.
	Tab struct {
		Title    string    `yaml:"title,omitempty" json:"title,omitempty"`
		BPM      int       `yaml:"bpm" json:"tempo"`
		Measures []Measure `yaml:"measures" json:"measures"`
	}
)

// BeatsPerMeasure is the number of beats the scheduler advances per measure.
// Time signatures other than 4/4 are carried through the data model but the
// transport walks measures in common time.
const BeatsPerMeasure = 4

// MinBPM and MaxBPM bound the playable tempo range; tempos outside the range
// are clamped, both at load time and when changed during playback.
const (
	MinBPM = 60
	MaxBPM = 200
)

// NumStrings is the number of strings of the modeled instrument.
const NumStrings = 6

// ClampBPM clamps the given tempo into the playable [MinBPM, MaxBPM] range.
func ClampBPM(bpm int) int {
	if bpm < MinBPM {
		return MinBPM
	}
	if bpm > MaxBPM {
		return MaxBPM
	}
	return bpm
}

// Sounded returns true if the note should produce sound: rests (fret < 0) and
// notes on out-of-range strings are skipped silently.
func (n NoteEvent) Sounded() bool {
	return n.Fret >= 0 && n.String >= 0 && n.String < NumStrings
}

// Copy makes a deep copy of a Measure.
func (m *Measure) Copy() Measure {
	notes := make([]NoteEvent, len(m.Notes))
	copy(notes, m.Notes)
	return Measure{TimeSignature: m.TimeSignature, Notes: notes}
}

// Copy makes a deep copy of a Tab.
func (t *Tab) Copy() Tab {
	measures := make([]Measure, len(t.Measures))
	for i := range t.Measures {
		measures[i] = t.Measures[i].Copy()
	}
	return Tab{Title: t.Title, BPM: t.BPM, Measures: measures}
}

// TotalBeats returns the length of the tab in beats.
func (t *Tab) TotalBeats() float64 {
	return float64(len(t.Measures) * BeatsPerMeasure)
}

// SecondsPerBeat returns the duration of one beat at the tab's nominal tempo.
func (t *Tab) SecondsPerBeat() float64 {
	if t.BPM <= 0 {
		return 0
	}
	return 60.0 / float64(t.BPM)
}

// Duration returns the nominal duration of the tab in seconds, i.e. the time
// from the start of the first measure to the end of the last one, excluding
// any decay tail still ringing after the final beat.
func (t *Tab) Duration() float64 {
	return t.TotalBeats() * t.SecondsPerBeat()
}

// FillGlobalBeats derives GlobalBeat for every note that does not carry one,
// as measureIndex*BeatsPerMeasure + BeatPosition. Notes with an explicit
// nonzero GlobalBeat are left untouched.
func (t *Tab) FillGlobalBeats() {
	for i := range t.Measures {
		base := float64(i * BeatsPerMeasure)
		for j := range t.Measures[i].Notes {
			n := &t.Measures[i].Notes[j]
			if n.GlobalBeat == 0 {
				n.GlobalBeat = base + n.BeatPosition
			}
		}
	}
}

// Validate checks if the Tab looks like a valid tab: tempo in range, notes on
// existing strings, positive durations. A tab with no sounding notes is valid;
// playing it just completes immediately.
func (t *Tab) Validate() error {
	if t.BPM < MinBPM || t.BPM > MaxBPM {
		return fmt.Errorf("tempo %v outside playable range [%v, %v]", t.BPM, MinBPM, MaxBPM)
	}
	if len(t.Measures) == 0 {
		return errors.New("tab contains no measures")
	}
	for i, m := range t.Measures {
		for j, n := range m.Notes {
			if n.String < 0 || n.String >= NumStrings {
				return fmt.Errorf("measure %v note %v: string %v out of range", i, j, n.String)
			}
			if n.Fret >= 0 && n.BeatDuration <= 0 {
				return fmt.Errorf("measure %v note %v: non-positive beat duration %v", i, j, n.BeatDuration)
			}
			if n.BeatPosition < 0 || n.BeatPosition >= BeatsPerMeasure {
				return fmt.Errorf("measure %v note %v: beat position %v outside measure", i, j, n.BeatPosition)
			}
		}
	}
	return nil
}

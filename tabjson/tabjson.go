// Package tabjson decodes and validates tab payloads. The wire shape is a
// versioned JSON (or YAML) document; decoding normalizes everything into the
// strict tabsynth.Tab domain types once, at load time, so the playback core
// never sees a partially-shaped payload.
package tabjson

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mkarvonen/tabsynth"
)

// CurrentVersion is the payload version this package writes; version 1
// payloads use the legacy subdivision-based note timing and are migrated on
// load.
const CurrentVersion = 2

// legacySubdivisions is the number of note slots per beat in version 1
// payloads: positions and durations were counted in 16th-note slots.
const legacySubdivisions = 4

// DefaultBPM is used when a payload carries no tempo.
const DefaultBPM = 120

type (
	payload struct {
		Version  int              `json:"version" yaml:"version"`
		Title    string           `json:"title" yaml:"title"`
		Tempo    *int             `json:"tempo" yaml:"tempo"`
		Measures []measurePayload `json:"measures" yaml:"measures"`
	}

	measurePayload struct {
		TimeSignature *timeSignaturePayload `json:"timeSignature" yaml:"timesignature"`
		Notes         []notePayload         `json:"notes" yaml:"notes"`
	}

	timeSignaturePayload struct {
		Numerator   int `json:"numerator" yaml:"numerator"`
		Denominator int `json:"denominator" yaml:"denominator"`
	}

	notePayload struct {
		String       *int     `json:"string" yaml:"string"`
		Fret         *int     `json:"fret" yaml:"fret"`
		BeatPosition *float64 `json:"beatPosition" yaml:"beatposition"`
		BeatDuration *float64 `json:"beatDuration" yaml:"beatduration"`
		GlobalBeat   *float64 `json:"globalBeatPosition" yaml:"globalbeat"`

		// legacy version 1 fields, in 16th-note slots from measure start
		Subdivision *int `json:"subdivision" yaml:"subdivision"`
		Duration    *int `json:"duration" yaml:"duration"`
	}
)

// Parse decodes a tab payload from JSON or YAML bytes, validates it and
// normalizes it into domain types. Legacy subdivision timing is converted to
// beat positions, tempo is clamped into the playable range, and every note
// gets its global beat position filled in.
func Parse(data []byte) (*tabsynth.Tab, error) {
	var p payload
	if errJSON := json.Unmarshal(data, &p); errJSON != nil {
		if errYaml := yaml.Unmarshal(data, &p); errYaml != nil {
			return nil, fmt.Errorf("the tab could not be parsed as json (%v) or yaml (%v)", errJSON, errYaml)
		}
	}
	return normalize(&p)
}

func normalize(p *payload) (*tabsynth.Tab, error) {
	if p.Version < 1 || p.Version > CurrentVersion {
		return nil, fmt.Errorf("unsupported tab payload version %v", p.Version)
	}
	if p.Measures == nil {
		return nil, fmt.Errorf("tab payload has no measures")
	}
	bpm := DefaultBPM
	if p.Tempo != nil {
		bpm = tabsynth.ClampBPM(*p.Tempo)
	}
	tab := &tabsynth.Tab{Title: p.Title, BPM: bpm}
	for i, m := range p.Measures {
		measure := tabsynth.Measure{TimeSignature: tabsynth.TimeSignature{Numerator: 4, Denominator: 4}}
		if m.TimeSignature != nil {
			if m.TimeSignature.Numerator < 1 || m.TimeSignature.Denominator < 1 {
				return nil, fmt.Errorf("measure %v: malformed time signature", i)
			}
			measure.TimeSignature = tabsynth.TimeSignature(*m.TimeSignature)
		}
		for j, n := range m.Notes {
			note, err := normalizeNote(p.Version, n)
			if err != nil {
				return nil, fmt.Errorf("measure %v note %v: %w", i, j, err)
			}
			if note.GlobalBeat == 0 {
				note.GlobalBeat = float64(i*tabsynth.BeatsPerMeasure) + note.BeatPosition
			}
			measure.Notes = append(measure.Notes, note)
		}
		tab.Measures = append(tab.Measures, measure)
	}
	if err := tab.Validate(); err != nil {
		return nil, err
	}
	return tab, nil
}

func normalizeNote(version int, n notePayload) (tabsynth.NoteEvent, error) {
	var note tabsynth.NoteEvent
	if n.String == nil || n.Fret == nil {
		return note, fmt.Errorf("missing string or fret")
	}
	note.String = *n.String
	note.Fret = *n.Fret
	switch {
	case n.BeatPosition != nil && n.BeatDuration != nil:
		note.BeatPosition = *n.BeatPosition
		note.BeatDuration = *n.BeatDuration
	case version == 1 && n.Subdivision != nil && n.Duration != nil:
		note.BeatPosition = float64(*n.Subdivision) / legacySubdivisions
		note.BeatDuration = float64(*n.Duration) / legacySubdivisions
	default:
		return note, fmt.Errorf("missing beat position or duration")
	}
	if n.GlobalBeat != nil {
		note.GlobalBeat = *n.GlobalBeat
	}
	return note, nil
}

package tabsynth_test

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/mkarvonen/tabsynth"
)

func testTab() tabsynth.Tab {
	return tabsynth.Tab{
		Title: "test",
		BPM:   120,
		Measures: []tabsynth.Measure{
			{
				TimeSignature: tabsynth.TimeSignature{Numerator: 4, Denominator: 4},
				Notes: []tabsynth.NoteEvent{
					{String: 0, Fret: 0, BeatPosition: 0, BeatDuration: 1},
					{String: 5, Fret: -1, BeatPosition: 1, BeatDuration: 1},
					{String: 1, Fret: 2, BeatPosition: 2, BeatDuration: 2},
				},
			},
			{
				TimeSignature: tabsynth.TimeSignature{Numerator: 4, Denominator: 4},
				Notes: []tabsynth.NoteEvent{
					{String: 2, Fret: 2, BeatPosition: 0, BeatDuration: 2},
				},
			},
		},
	}
}

func TestYamlRoundTrip(t *testing.T) {
	tab := testTab()
	out, err := yaml.Marshal(&tab)
	if err != nil {
		t.Fatalf("yaml.Marshal failed: %v", err)
	}
	var got tabsynth.Tab
	if err := yaml.Unmarshal(out, &got); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(tab, got) {
		t.Errorf("tab changed in yaml round trip, got %#v", got)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	tab := testTab()
	out, err := json.Marshal(&tab)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	var got tabsynth.Tab
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(tab, got) {
		t.Errorf("tab changed in json round trip, got %#v", got)
	}
}

func TestCopyIsDeep(t *testing.T) {
	tab := testTab()
	cp := tab.Copy()
	cp.Measures[0].Notes[0].Fret = 12
	if tab.Measures[0].Notes[0].Fret == 12 {
		t.Errorf("Copy did not copy the notes")
	}
}

func TestDuration(t *testing.T) {
	tab := testTab()
	if got := tab.TotalBeats(); got != 8 {
		t.Errorf("TotalBeats: got %v, expected 8", got)
	}
	if got := tab.Duration(); math.Abs(got-4.0) > 1e-9 {
		t.Errorf("Duration: got %v, expected 4.0", got)
	}
}

func TestValidate(t *testing.T) {
	for _, test := range []struct {
		name   string
		mutate func(*tabsynth.Tab)
		ok     bool
	}{
		{"valid", func(t *tabsynth.Tab) {}, true},
		{"tempo too low", func(t *tabsynth.Tab) { t.BPM = 30 }, false},
		{"tempo too high", func(t *tabsynth.Tab) { t.BPM = 500 }, false},
		{"no measures", func(t *tabsynth.Tab) { t.Measures = nil }, false},
		{"bad string", func(t *tabsynth.Tab) { t.Measures[0].Notes[0].String = 6 }, false},
		{"zero duration", func(t *tabsynth.Tab) { t.Measures[0].Notes[0].BeatDuration = 0 }, false},
		{"rest without duration", func(t *tabsynth.Tab) { t.Measures[0].Notes[1].BeatDuration = 0 }, true},
		{"beat outside measure", func(t *tabsynth.Tab) { t.Measures[0].Notes[0].BeatPosition = 4 }, false},
	} {
		t.Run(test.name, func(t *testing.T) {
			tab := testTab()
			test.mutate(&tab)
			err := tab.Validate()
			if test.ok && err != nil {
				t.Errorf("Validate failed: %v", err)
			}
			if !test.ok && err == nil {
				t.Errorf("Validate should have failed")
			}
		})
	}
}

func TestFillGlobalBeats(t *testing.T) {
	tab := testTab()
	tab.FillGlobalBeats()
	if got := tab.Measures[1].Notes[0].GlobalBeat; got != 4 {
		t.Errorf("GlobalBeat of second measure note: got %v, expected 4", got)
	}
	if got := tab.Measures[0].Notes[2].GlobalBeat; got != 2 {
		t.Errorf("GlobalBeat of first measure note: got %v, expected 2", got)
	}
}

func TestFrequency(t *testing.T) {
	for _, test := range []struct {
		string, fret int
		expected     float64
	}{
		{0, 0, 329.63},
		{4, 0, 110.00},
		{5, 0, 82.41},
		{4, 12, 220.00},
		{0, 12, 659.26},
		{0, -1, 0},
		{6, 0, 0},
		{-1, 0, 0},
	} {
		got := tabsynth.Frequency(test.string, test.fret)
		if math.Abs(got-test.expected) > 0.01 {
			t.Errorf("Frequency(%v, %v): got %v, expected %v", test.string, test.fret, got, test.expected)
		}
	}
}

func TestMIDINote(t *testing.T) {
	if got := tabsynth.MIDINote(0, 0); got != 64 {
		t.Errorf("MIDINote(0, 0): got %v, expected 64", got)
	}
	if got := tabsynth.MIDINote(5, 5); got != 45 {
		t.Errorf("MIDINote(5, 5): got %v, expected 45", got)
	}
	if got := tabsynth.MIDINote(0, -1); got != -1 {
		t.Errorf("MIDINote(0, -1): got %v, expected -1", got)
	}
}

func TestSounded(t *testing.T) {
	if (tabsynth.NoteEvent{String: 0, Fret: -1}).Sounded() {
		t.Errorf("rest should not be sounded")
	}
	if (tabsynth.NoteEvent{String: 6, Fret: 0}).Sounded() {
		t.Errorf("out of range string should not be sounded")
	}
	if !(tabsynth.NoteEvent{String: 3, Fret: 5}).Sounded() {
		t.Errorf("valid note should be sounded")
	}
}

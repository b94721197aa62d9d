package transport

import (
	"reflect"
	"testing"

	"github.com/mkarvonen/tabsynth"
)

func TestFlattenOrdersAndSkipsRests(t *testing.T) {
	tab := &tabsynth.Tab{
		BPM: 120,
		Measures: []tabsynth.Measure{
			{Notes: []tabsynth.NoteEvent{
				{String: 0, Fret: 3, BeatPosition: 2, BeatDuration: 1},
				{String: 1, Fret: 0, BeatPosition: 0, BeatDuration: 1},
				{String: 2, Fret: -1, BeatPosition: 1, BeatDuration: 1}, // rest
			}},
			{Notes: []tabsynth.NoteEvent{
				{String: 3, Fret: 5, BeatPosition: 1, BeatDuration: 2},
			}},
		},
	}
	triggers := Flatten(tab)
	beats := make([]float64, len(triggers))
	for i, tr := range triggers {
		beats[i] = tr.Beat
	}
	want := []float64{0, 2, 5}
	if !reflect.DeepEqual(beats, want) {
		t.Errorf("beats = %v, want %v", beats, want)
	}
	for _, tr := range triggers {
		if tr.Fired {
			t.Errorf("freshly flattened trigger already fired: %+v", tr)
		}
		if !tr.Note.Sounded() {
			t.Errorf("rest survived flattening: %+v", tr.Note)
		}
	}
}

func TestFlattenStableAtSameBeat(t *testing.T) {
	// a chord: three notes at the same beat keep their measure order
	tab := &tabsynth.Tab{
		BPM: 120,
		Measures: []tabsynth.Measure{
			{Notes: []tabsynth.NoteEvent{
				{String: 0, Fret: 0, BeatPosition: 1, BeatDuration: 1},
				{String: 1, Fret: 1, BeatPosition: 1, BeatDuration: 1},
				{String: 2, Fret: 2, BeatPosition: 1, BeatDuration: 1},
			}},
		},
	}
	triggers := Flatten(tab)
	if len(triggers) != 3 {
		t.Fatalf("got %v triggers, want 3", len(triggers))
	}
	for i, tr := range triggers {
		if tr.Note.String != i {
			t.Errorf("chord order not preserved: position %v holds string %v", i, tr.Note.String)
		}
	}
	again := Flatten(tab)
	if !reflect.DeepEqual(triggers, again) {
		t.Errorf("flattening the same tab twice gave different sequences")
	}
}

func TestFlattenHonorsGlobalBeat(t *testing.T) {
	tab := &tabsynth.Tab{
		BPM: 120,
		Measures: []tabsynth.Measure{
			{},
			{Notes: []tabsynth.NoteEvent{
				{String: 0, Fret: 0, BeatPosition: 1, BeatDuration: 1, GlobalBeat: 5},
			}},
		},
	}
	triggers := Flatten(tab)
	if len(triggers) != 1 || triggers[0].Beat != 5 {
		t.Errorf("expected the pre-filled global beat to win, got %+v", triggers)
	}
}

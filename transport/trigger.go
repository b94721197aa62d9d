package transport

import (
	"sort"

	"github.com/mkarvonen/tabsynth"
)

// Trigger is a scheduled intent to start a voice at a specific musical time.
// Triggers are created once per playback session from the tab and owned
// exclusively by the transport; only the tick function mutates the fired
// flag, except for a loop reset un-firing the triggers inside the loop
// window.
type Trigger struct {
	Note  tabsynth.NoteEvent
	Beat  float64 // absolute position, beats from the start of the tab
	Fired bool
}

// Flatten converts every sounding note across all measures into a trigger
// keyed by its global beat position, sorted ascending. The sort is stable, so
// notes at the same beat keep their original measure order; flattening the
// same tab twice yields identical sequences.
func Flatten(tab *tabsynth.Tab) []Trigger {
	var triggers []Trigger
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
			triggers = append(triggers, Trigger{Note: note, Beat: beat})
		}
	}
	sort.SliceStable(triggers, func(i, j int) bool {
		return triggers[i].Beat < triggers[j].Beat
	})
	return triggers
}

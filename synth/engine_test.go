package synth

import (
	"errors"
	"testing"

	"github.com/mkarvonen/tabsynth"
)

func renderSeconds(t *testing.T, e *Engine, seconds float64) tabsynth.AudioBuffer {
	t.Helper()
	buf := make(tabsynth.AudioBuffer, int(seconds*float64(e.SampleRate())))
	if err := e.Render(buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	return buf
}

func stereoRMS(buf tabsynth.AudioBuffer) float64 {
	return rms(buf.Mono())
}

func openString(s int) tabsynth.NoteEvent {
	return tabsynth.NoteEvent{String: s, Fret: 0, BeatDuration: 1}
}

func TestEngineRequiresInitialize(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.PlayNote(openString(0), 0, 1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("PlayNote before Initialize: got %v", err)
	}
	if err := e.Render(make(tabsynth.AudioBuffer, 64)); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Render before Initialize: got %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Errorf("second Initialize should be a no-op: %v", err)
	}
}

func TestEnginePlayNoteRegistersOneVoice(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.PlayNote(openString(0), 0, 1); err != nil {
		t.Fatal(err)
	}
	if got := e.ActiveVoices(); got != 1 {
		t.Errorf("ActiveVoices = %v, want 1", got)
	}
}

func TestEngineSkipsRestsAndBadStrings(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	rest := tabsynth.NoteEvent{String: 0, Fret: -1, BeatDuration: 1}
	if err := e.PlayNote(rest, 0, 1); err != nil {
		t.Errorf("rest should be skipped silently: %v", err)
	}
	bad := tabsynth.NoteEvent{String: 9, Fret: 0, BeatDuration: 1}
	if err := e.PlayNote(bad, 0, 1); err != nil {
		t.Errorf("out-of-range string should be skipped silently: %v", err)
	}
	if got := e.ActiveVoices(); got != 0 {
		t.Errorf("ActiveVoices = %v, want 0", got)
	}
}

func TestEngineScheduledNoteWaits(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.PlayNote(openString(2), 2.0, 1.0); err != nil {
		t.Fatal(err)
	}
	if lead := stereoRMS(renderSeconds(t, e, 1.9)); lead != 0 {
		t.Errorf("audio before the scheduled start: rms %v", lead)
	}
	if got := e.ActiveVoices(); got != 1 {
		t.Errorf("pending voice reaped early: ActiveVoices = %v", got)
	}
	if sounding := stereoRMS(renderSeconds(t, e, 0.5)); sounding == 0 {
		t.Errorf("scheduled note never sounded")
	}
	renderSeconds(t, e, 1.5) // past start+duration+tail
	if tail := stereoRMS(renderSeconds(t, e, 0.1)); tail > 1e-3 {
		t.Errorf("audio after the note released: rms %v", tail)
	}
	if got := e.ActiveVoices(); got != 0 {
		t.Errorf("finished voice not reaped: ActiveVoices = %v", got)
	}
}

func TestEngineStopAllNotes(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.PlayNote(openString(0), 0, 4); err != nil {
		t.Fatal(err)
	}
	if err := e.PlayNote(openString(1), 3.0, 1); err != nil { // not yet sounding
		t.Fatal(err)
	}
	if before := stereoRMS(renderSeconds(t, e, 0.1)); before == 0 {
		t.Fatalf("note should be sounding before StopAllNotes")
	}
	e.StopAllNotes()
	if got := e.ActiveVoices(); got != 0 {
		t.Errorf("ActiveVoices = %v after StopAllNotes, want 0", got)
	}
	renderSeconds(t, e, 0.05) // let the master ramp finish
	if after := stereoRMS(renderSeconds(t, e, 3.0)); after != 0 {
		t.Errorf("audio after StopAllNotes, including the scheduled voice: rms %v", after)
	}
}

func TestEnginePlayNoteAfterStopAllNotes(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := e.PlayNote(openString(0), 0, 2); err != nil {
		t.Fatal(err)
	}
	renderSeconds(t, e, 0.1)
	e.StopAllNotes()
	if err := e.PlayNote(openString(2), 0, 1); err != nil {
		t.Fatal(err)
	}
	renderSeconds(t, e, 0.05) // master ramp window
	if got := stereoRMS(renderSeconds(t, e, 0.2)); got == 0 {
		t.Errorf("note played after StopAllNotes was silenced")
	}
}

func TestEngineMasterVolume(t *testing.T) {
	e := NewEngine(PluckedSynther{})
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	e.SetMasterVolume(0)
	if err := e.PlayNote(openString(0), 0, 1); err != nil {
		t.Fatal(err)
	}
	if got := stereoRMS(renderSeconds(t, e, 0.2)); got != 0 {
		t.Errorf("volume 0 should mute the output: rms %v", got)
	}
	e.SetMasterVolume(1)
	if got := stereoRMS(renderSeconds(t, e, 0.2)); got == 0 {
		t.Errorf("restoring the volume should unmute the voice")
	}
}

func TestEngineVoiceStealing(t *testing.T) {
	e := NewEngine(PluckedSynther{}, WithMaxVoices(2))
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	for s := 0; s < 3; s++ {
		if err := e.PlayNote(openString(s), float64(s)*0.01, 1); err != nil {
			t.Fatal(err)
		}
	}
	if got := e.ActiveVoices(); got != 2 {
		t.Errorf("ActiveVoices = %v, want the cap of 2", got)
	}
}

func TestEngineClockAdvances(t *testing.T) {
	e := NewEngine(PluckedSynther{}, WithSampleRate(48000))
	if err := e.Initialize(); err != nil {
		t.Fatal(err)
	}
	if now := e.Now(); now != 0 {
		t.Fatalf("fresh engine clock = %v", now)
	}
	renderSeconds(t, e, 0.5)
	if now := e.Now(); now < 0.499 || now > 0.501 {
		t.Errorf("engine clock after 0.5 s of audio = %v", now)
	}
}

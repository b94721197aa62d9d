package tabsynth

import "math"

// StringParams are the per-string physical parameters of the plucked string
// model. One record per string index; the table is a process-wide constant.
type StringParams struct {
	// Damping is the feedback loss factor of the string loop. Strictly < 1,
	// or the tone would never decay.
	Damping float64
	// PluckPosition is the fractional point along the string where the
	// excitation energy is concentrated, affecting the initial timbre.
	PluckPosition float64
	// Wound strings get extra high-frequency damping, modeled with an
	// additional low-pass in the string loop.
	Wound bool
}

// stringTable indexes StringParams by string number, 0 = high E, 5 = low E.
// The three lowest strings of a standard set are wound. The plain strings
// ring slightly longer and are plucked closer to the bridge.
var stringTable = [NumStrings]StringParams{
	{Damping: 0.996, PluckPosition: 0.13},
	{Damping: 0.996, PluckPosition: 0.15},
	{Damping: 0.995, PluckPosition: 0.17},
	{Damping: 0.994, PluckPosition: 0.19, Wound: true},
	{Damping: 0.993, PluckPosition: 0.21, Wound: true},
	{Damping: 0.992, PluckPosition: 0.23, Wound: true},
}

// StandardTuning is the open-string fundamental frequency of each string in
// Hz, high to low: E4 B3 G3 D3 A2 E2.
var StandardTuning = [NumStrings]float64{
	329.63, 246.94, 196.00, 146.83, 110.00, 82.41,
}

// StringParamsFor returns the physical parameters for the given string index.
// Out-of-range indices return the parameters of the nearest valid string, so
// callers that already filtered with NoteEvent.Sounded never see a panic here.
func StringParamsFor(stringIndex int) StringParams {
	if stringIndex < 0 {
		stringIndex = 0
	}
	if stringIndex >= NumStrings {
		stringIndex = NumStrings - 1
	}
	return stringTable[stringIndex]
}

// Frequency resolves a string/fret pair to a fundamental frequency using
// 12-tone equal temperament over the standard tuning. Returns 0 for notes
// that should not sound.
func Frequency(stringIndex, fret int) float64 {
	if fret < 0 || stringIndex < 0 || stringIndex >= NumStrings {
		return 0
	}
	return StandardTuning[stringIndex] * math.Pow(2, float64(fret)/12)
}

// MIDINote resolves a string/fret pair to a MIDI note number, or -1 for notes
// that should not sound. Standard tuning: string 0 open = E4 = 64.
func MIDINote(stringIndex, fret int) int {
	if fret < 0 || stringIndex < 0 || stringIndex >= NumStrings {
		return -1
	}
	openNotes := [NumStrings]int{64, 59, 55, 50, 45, 40}
	return openNotes[stringIndex] + fret
}

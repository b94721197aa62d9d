package oto

import (
	"time"

	"github.com/mkarvonen/tabsynth"
)

// HeadlessContext is an AudioContext whose sink discards the audio but still
// consumes it at real-time rate, for running the full playback path on a
// machine without an audio device.
type HeadlessContext struct {
	sampleRate int
}

func NewHeadlessContext(sampleRate int) *HeadlessContext {
	return &HeadlessContext{sampleRate: sampleRate}
}

func (c *HeadlessContext) Output() tabsynth.AudioSink {
	return &headlessOutput{sampleRate: c.sampleRate}
}

func (c *HeadlessContext) Close() error { return nil }

type headlessOutput struct {
	sampleRate int
}

func (o *headlessOutput) WriteAudio(buffer tabsynth.AudioBuffer) error {
	// discard, but keep the caller paced as a real device would
	time.Sleep(time.Duration(float64(len(buffer)) / float64(o.sampleRate) * float64(time.Second)))
	return nil
}

func (o *headlessOutput) Close() error { return nil }

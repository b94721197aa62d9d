package transport

import (
	"context"
	"sync"
	"time"

	"github.com/mkarvonen/tabsynth"
)

// State is the transport state machine: Stopped -> Playing <-> Paused, with
// Playing -> Stopped on natural completion or explicit stop.
type State int

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// NoteSink is where fired triggers go; implemented by synth.Engine.
type NoteSink interface {
	PlayNote(note tabsynth.NoteEvent, startOffset, duration float64) error
	StopAllNotes()
}

// Observer receives playback notifications. Callbacks are invoked from the
// goroutine driving Tick, outside the transport lock, so an observer may call
// back into the transport.
type Observer interface {
	OnProgress(fraction float64)
	OnComplete()
	OnError(err error)
}

const (
	// TickInterval is the cadence of the scheduling tick. The tick must
	// complete well under this period; it never blocks.
	TickInterval = 10 * time.Millisecond

	// lookahead is the window before a trigger's nominal time during which
	// the tick pre-schedules it with a positive start offset, so near-future
	// notes start on time instead of late.
	lookahead = 50 * time.Millisecond

	// maxLateBeats is the stall policy: a trigger missed by less than this
	// many beats (host hiccup, slow tick) fires immediately with zero
	// offset; one missed by more (host sleep) is skipped outright.
	maxLateBeats = 1.0
)

// Transport walks a flattened note timeline against a clock and dispatches
// due triggers to the note sink. All methods are safe for concurrent use;
// the tick itself runs on a single goroutine, so the scheduling algorithm
// never re-enters.
type Transport struct {
	mu     sync.Mutex
	clock  Clock
	engine NoteSink
	tab    *tabsynth.Tab

	state          State
	triggers       []Trigger
	totalBeats     float64
	secondsPerBeat float64

	startTime   time.Duration // clock time corresponding to beat 0
	pausedTotal time.Duration
	pauseStart  time.Duration

	looping       bool
	loopStartBeat float64
	loopEndBeat   float64

	observers []Observer
}

func New(engine NoteSink, clock Clock) *Transport {
	return &Transport{clock: clock, engine: engine}
}

// AddObserver registers an observer for progress and completion callbacks.
func (t *Transport) AddObserver(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observers = append(t.observers, o)
}

// SetTab loads a new tab, resetting the transport to Stopped and silencing
// any playback in flight. The tab's tempo becomes the playback tempo, clamped
// into the playable range.
func (t *Transport) SetTab(tab *tabsynth.Tab) {
	t.mu.Lock()
	t.tab = tab
	t.state = StateStopped
	t.triggers = nil
	t.pausedTotal = 0
	t.totalBeats = 0
	if tab != nil {
		t.secondsPerBeat = 60.0 / float64(tabsynth.ClampBPM(tab.BPM))
		t.totalBeats = tab.TotalBeats()
	}
	t.mu.Unlock()
	t.engine.StopAllNotes()
}

// State returns the current transport state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Play starts playback from the beginning, or resumes it when paused. When
// resuming, the time spent paused is added to the paused-duration accumulator
// so the playhead continues exactly where it froze. Fired flags survive a
// pause; a fresh start re-flattens the trigger list.
func (t *Transport) Play() {
	t.mu.Lock()
	switch t.state {
	case StatePlaying:
		t.mu.Unlock()
		return
	case StatePaused:
		t.pausedTotal += t.clock.Now() - t.pauseStart
		t.state = StatePlaying
		t.mu.Unlock()
		return
	}
	if t.tab == nil {
		t.mu.Unlock()
		return
	}
	t.triggers = Flatten(t.tab)
	t.totalBeats = t.tab.TotalBeats()
	t.pausedTotal = 0
	t.startTime = t.clock.Now()
	if len(t.triggers) == 0 {
		// nothing will ever sound; complete right away
		t.mu.Unlock()
		t.notify(1, true)
		return
	}
	t.state = StatePlaying
	t.mu.Unlock()
}

// Pause freezes the playhead and cuts the currently sounding notes; sustain
// does not continue into the paused interval.
func (t *Transport) Pause() {
	t.mu.Lock()
	if t.state != StatePlaying {
		t.mu.Unlock()
		return
	}
	t.state = StatePaused
	t.pauseStart = t.clock.Now()
	t.mu.Unlock()
	t.engine.StopAllNotes()
}

// Stop halts playback, force-silences the engine, and rewinds the playhead
// to the start. Progress 0 is reported to the observers.
func (t *Transport) Stop() {
	t.mu.Lock()
	t.state = StateStopped
	t.triggers = nil
	t.pausedTotal = 0
	t.mu.Unlock()
	t.engine.StopAllNotes()
	t.notify(0, false)
}

// SetTempo changes the playback tempo, clamped into [MinBPM, MaxBPM]. Beat
// positions are tempo-independent, so the trigger list is untouched; only the
// beat-to-seconds mapping changes, and the playhead beat is preserved across
// the change.
func (t *Transport) SetTempo(bpm int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	newSpb := 60.0 / float64(tabsynth.ClampBPM(bpm))
	if t.state != StateStopped && t.secondsPerBeat > 0 {
		beat := t.currentBeat(t.clock.Now())
		t.secondsPerBeat = newSpb
		t.rebase(beat)
		return
	}
	t.secondsPerBeat = newSpb
}

// SetLooping enables or disables looping over the configured loop range.
func (t *Transport) SetLooping(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.looping = on
}

// SetLoopRange sets the loop window to the measures [startMeasure,
// endMeasure], 1-based and inclusive on both ends, i.e. the beat range
// [(startMeasure-1)*4, endMeasure*4). Updating the range while stopped is
// pure bookkeeping; while playing, it takes effect on the next boundary
// check.
func (t *Transport) SetLoopRange(startMeasure, endMeasure int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if startMeasure < 1 {
		startMeasure = 1
	}
	if endMeasure < startMeasure {
		endMeasure = startMeasure
	}
	t.loopStartBeat = float64((startMeasure - 1) * tabsynth.BeatsPerMeasure)
	t.loopEndBeat = float64(endMeasure * tabsynth.BeatsPerMeasure)
}

// Tick runs one scheduling pass: it computes the playhead beat from the
// clock, fires every due trigger within the lookahead window in beat order,
// reports progress, and handles the loop boundary and natural completion.
func (t *Transport) Tick() {
	t.mu.Lock()
	if t.state != StatePlaying || t.secondsPerBeat <= 0 {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	beat := t.currentBeat(now)

	var playErr error
	lookaheadBeats := lookahead.Seconds() / t.secondsPerBeat
	for i := range t.triggers {
		tr := &t.triggers[i]
		if tr.Beat > beat+lookaheadBeats {
			break // sorted; everything beyond is in the future
		}
		if tr.Fired {
			continue
		}
		tr.Fired = true
		if tr.Beat < beat-maxLateBeats {
			continue // stalled past the catch-up window; skip, do not burst
		}
		offset := (tr.Beat - beat) * t.secondsPerBeat
		if offset < 0 {
			offset = 0
		}
		if err := t.engine.PlayNote(tr.Note, offset, tr.Note.BeatDuration*t.secondsPerBeat); err != nil && playErr == nil {
			playErr = err
		}
	}

	if t.looping && t.loopEndBeat > t.loopStartBeat && beat >= t.loopEndBeat {
		// reposition the logical start so the playhead lands exactly on the
		// loop start, and re-arm the triggers inside the loop window
		t.pausedTotal = 0
		t.rebase(t.loopStartBeat)
		for i := range t.triggers {
			if t.triggers[i].Beat >= t.loopStartBeat && t.triggers[i].Beat < t.loopEndBeat {
				t.triggers[i].Fired = false
			}
		}
		beat = t.loopStartBeat
	}

	progress := 1.0
	if t.totalBeats > 0 {
		progress = beat / t.totalBeats
		if progress > 1 {
			progress = 1
		}
	}
	completed := !t.looping && progress >= 1
	if completed {
		// natural end: transition to Stopped but let the tail ring out
		t.state = StateStopped
		t.triggers = nil
		t.pausedTotal = 0
	}
	t.mu.Unlock()
	if playErr != nil {
		t.notifyError(playErr)
	}
	t.notify(progress, completed)
}

// Run drives Tick at TickInterval until the context is cancelled. The loop
// serializes ticks on one goroutine, so a slow tick delays the next instead
// of re-entering the scheduler.
func (t *Transport) Run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Tick()
		}
	}
}

// currentBeat computes the playhead position in beats. While paused, the
// reference time freezes at the moment of pausing, so the beat holds steady
// for any wall-clock pause duration.
func (t *Transport) currentBeat(now time.Duration) float64 {
	ref := now
	if t.state == StatePaused {
		ref = t.pauseStart
	}
	elapsed := (ref - t.startTime - t.pausedTotal).Seconds()
	return elapsed / t.secondsPerBeat
}

// rebase moves startTime so that the playhead reads the given beat right now
// under the current tempo.
func (t *Transport) rebase(beat float64) {
	ref := t.clock.Now()
	if t.state == StatePaused {
		ref = t.pauseStart
	}
	offset := time.Duration(beat * t.secondsPerBeat * float64(time.Second))
	t.startTime = ref - t.pausedTotal - offset
}

func (t *Transport) notify(progress float64, completed bool) {
	for _, o := range t.snapshotObservers() {
		o.OnProgress(progress)
	}
	if completed {
		for _, o := range t.snapshotObservers() {
			o.OnComplete()
		}
	}
}

func (t *Transport) notifyError(err error) {
	for _, o := range t.snapshotObservers() {
		o.OnError(err)
	}
}

func (t *Transport) snapshotObservers() []Observer {
	t.mu.Lock()
	defer t.mu.Unlock()
	observers := make([]Observer, len(t.observers))
	copy(observers, t.observers)
	return observers
}

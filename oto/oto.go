// Package oto adapts the ebitengine/oto/v3 audio pipeline to the
// tabsynth.AudioContext interface. The oto player pulls samples from a ring
// buffer; WriteAudio pushes into the ring and blocks while it is full, which
// is what paces the render loop to real time.
package oto

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/mkarvonen/tabsynth"
)

// ringSeconds is the capacity of the buffer between the renderer and the
// audio pipeline. Large enough to ride out scheduling hiccups, small enough
// to keep stop/pause latency unobtrusive.
const ringSeconds = 0.2

type Context struct {
	ctx        *oto.Context
	sampleRate int
}

// NewContext initializes the platform audio pipeline. Failure to do so is
// reported as ErrAudioUnavailable and is not retried here; on some platforms
// audio only becomes available after a user gesture, and the caller decides
// when to try again.
func NewContext(sampleRate int) (*Context, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   20 * time.Millisecond,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tabsynth.ErrAudioUnavailable, err)
	}
	<-ready
	return &Context{ctx: ctx, sampleRate: sampleRate}, nil
}

func (c *Context) Output() tabsynth.AudioSink {
	out := &Output{ring: newRing(int(ringSeconds * float64(c.sampleRate)))}
	out.player = c.ctx.NewPlayer(out)
	out.player.Play()
	return out
}

// Close suspends the context. An oto context itself cannot be destroyed,
// only suspended; the sinks own the players.
func (c *Context) Close() error {
	return c.ctx.Suspend()
}

type Output struct {
	player *oto.Player
	ring   *ring
}

// WriteAudio pushes the buffer into the ring, blocking until the pipeline has
// accepted all of it.
func (o *Output) WriteAudio(buffer tabsynth.AudioBuffer) error {
	if !o.ring.push(buffer) {
		return fmt.Errorf("cannot write to a closed audio output")
	}
	return nil
}

func (o *Output) Close() error {
	o.ring.close()
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Read is the pull side, called by oto from the audio thread: it drains the
// ring into the byte buffer as little-endian float32 stereo frames, padding
// with silence on underrun.
func (o *Output) Read(p []byte) (int, error) {
	frames := len(p) / 8
	for i := 0; i < frames; i++ {
		frame := o.ring.pop()
		binary.LittleEndian.PutUint32(p[i*8:], math.Float32bits(frame[0]))
		binary.LittleEndian.PutUint32(p[i*8+4:], math.Float32bits(frame[1]))
	}
	return frames * 8, nil
}

// ring is a bounded FIFO of stereo frames. push blocks while full; pop never
// blocks, returning silence when empty, as the audio thread must not wait.
type ring struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    [][2]float32
	r, w   int
	count  int
	closed bool
}

func newRing(capacity int) *ring {
	r := &ring{buf: make([][2]float32, capacity)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

func (r *ring) push(frames [][2]float32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range frames {
		for r.count == len(r.buf) && !r.closed {
			r.cond.Wait()
		}
		if r.closed {
			return false
		}
		r.buf[r.w] = f
		r.w = (r.w + 1) % len(r.buf)
		r.count++
	}
	return true
}

func (r *ring) pop() [2]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return [2]float32{}
	}
	f := r.buf[r.r]
	r.r = (r.r + 1) % len(r.buf)
	r.count--
	r.cond.Signal()
	return f
}

func (r *ring) close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

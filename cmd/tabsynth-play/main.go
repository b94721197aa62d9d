package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/mkarvonen/tabsynth"
	"github.com/mkarvonen/tabsynth/midi"
	otoaudio "github.com/mkarvonen/tabsynth/oto"
	"github.com/mkarvonen/tabsynth/synth"
	"github.com/mkarvonen/tabsynth/tabjson"
	"github.com/mkarvonen/tabsynth/transport"
	"github.com/mkarvonen/tabsynth/version"
)

func main() {
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the same directory where the original tab file is.")
	play := flag.Bool("p", false, "Play the input tabs (default behaviour when no other output is defined).")
	rawOut := flag.Bool("r", false, "Output the rendered tab as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered tab as .wav file. By default, saves stereo float32 buffer to disk.")
	midiOut := flag.Bool("m", false, "Output the tab as a .mid file.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	harmonic := flag.Bool("harmonic", false, "Use the additive harmonic voice instead of the plucked delay-line voice.")
	headless := flag.Bool("headless", false, "Play without an audio device, discarding the output at real-time rate.")
	tempo := flag.Int("tempo", 0, "Override the tab tempo, in BPM; clamped to the playable range.")
	loop := flag.Bool("loop", false, "Loop playback over the loop range until interrupted.")
	loopStart := flag.Int("loopstart", 1, "First measure of the loop range, 1-based.")
	loopEnd := flag.Int("loopend", 0, "Last measure of the loop range, inclusive; 0 means the last measure of the tab.")
	volume := flag.Float64("vol", 1.0, "Master volume, 0 to 1.")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if flag.NArg() == 0 || *help {
		flag.Usage()
		os.Exit(0)
	}
	if !*rawOut && !*wavOut && !*midiOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var synther synth.Synther = synth.PluckedSynther{}
	if *harmonic {
		synther = synth.HarmonicSynther{}
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			dir, name := filepath.Split(filename)
			if *directory != "" {
				dir = *directory
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if dir != "" {
				if err := os.MkdirAll(dir, os.ModePerm); err != nil {
					return fmt.Errorf("could not create output directory %v: %v", dir, err)
				}
			}
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("could not read file %v: %v", filename, err)
		}
		tab, err := tabjson.Parse(inputBytes)
		if err != nil {
			return fmt.Errorf("could not parse tab %v: %w", filename, err)
		}
		if *tempo != 0 {
			tab.BPM = tabsynth.ClampBPM(*tempo)
		}
		if *midiOut {
			var buf bytes.Buffer
			if err := midi.Write(tab, &buf); err != nil {
				return err
			}
			if err := output(".mid", buf.Bytes()); err != nil {
				return fmt.Errorf("error outputting .mid file: %w", err)
			}
		}
		if *rawOut || *wavOut {
			buffer, err := synth.Bounce(tab, synther, synth.DefaultSampleRate)
			if err != nil {
				return fmt.Errorf("could not render tab: %w", err)
			}
			if *rawOut {
				raw, err := buffer.Raw(*pcm)
				if err != nil {
					return fmt.Errorf("could not generate .raw file: %w", err)
				}
				if err := output(".raw", raw); err != nil {
					return fmt.Errorf("error outputting .raw file: %w", err)
				}
			}
			if *wavOut {
				wav, err := buffer.Wav(synth.DefaultSampleRate, *pcm)
				if err != nil {
					return fmt.Errorf("could not generate .wav file: %w", err)
				}
				if err := output(".wav", wav); err != nil {
					return fmt.Errorf("error outputting .wav file: %w", err)
				}
			}
		}
		if *play {
			if err := playTab(tab, synther, *headless, *loop, *loopStart, *loopEnd, *volume); err != nil {
				return err
			}
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if err := process(param); err != nil {
			fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
			retval = 1
		}
	}
	os.Exit(retval)
}

func playTab(tab *tabsynth.Tab, synther synth.Synther, headless, loop bool, loopStart, loopEnd int, volume float64) error {
	engine := synth.NewEngine(synther)
	if err := engine.Initialize(); err != nil {
		return fmt.Errorf("could not initialize audio engine: %w", err)
	}
	engine.SetMasterVolume(volume)

	var audioContext tabsynth.AudioContext
	if headless {
		audioContext = otoaudio.NewHeadlessContext(engine.SampleRate())
	} else {
		var err error
		audioContext, err = otoaudio.NewContext(engine.SampleRate())
		if err != nil {
			return fmt.Errorf("could not acquire audio context: %w", err)
		}
	}
	defer audioContext.Close()
	sink := audioContext.Output()
	defer sink.Close()

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	go func() {
		buf := make(tabsynth.AudioBuffer, 1024)
		for feedCtx.Err() == nil {
			if err := engine.Render(buf); err != nil {
				return
			}
			if err := sink.WriteAudio(buf); err != nil {
				return
			}
		}
	}()

	tr := transport.New(engine, transport.NewWallClock())
	tr.SetTab(tab)
	if loopEnd == 0 {
		loopEnd = len(tab.Measures)
	}
	tr.SetLoopRange(loopStart, loopEnd)
	tr.SetLooping(loop)

	done := make(chan struct{})
	tr.AddObserver(&consoleObserver{done: done})
	go tr.Run(feedCtx)
	tr.Play()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)
	select {
	case <-done:
		// the last notes are still decaying when the timeline ends
		time.Sleep(time.Second)
	case <-interrupt:
		tr.Stop()
	}
	return nil
}

// consoleObserver prints playback progress and flags completion.
type consoleObserver struct {
	done     chan struct{}
	lastTick int
}

func (o *consoleObserver) OnProgress(fraction float64) {
	percent := int(fraction * 100)
	if percent/5 != o.lastTick {
		o.lastTick = percent / 5
		fmt.Fprintf(os.Stderr, "\rplaying... %3d%%", percent)
	}
}

func (o *consoleObserver) OnComplete() {
	fmt.Fprintln(os.Stderr, "\rplaying... done")
	close(o.done)
}

func (o *consoleObserver) OnError(err error) {
	fmt.Fprintf(os.Stderr, "\rplayback error: %v\n", err)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Tabsynth command line utility for playing .json/.yml tab files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}

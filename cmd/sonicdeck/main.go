package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/sonicdeck-go"
	"github.com/cbegin/sonicdeck-go/internal/effects"
	"github.com/cbegin/sonicdeck-go/internal/synth"
)

// demoNotes is an A minor arpeggio played through the MIDI bridge.
var demoNotes = []uint8{57, 60, 64, 69, 72, 69, 64, 60}

const demoStep = 250 * time.Millisecond

func main() {
	var (
		filePath   = flag.String("file", "", "audio file to play (wav, mp3, ogg); empty plays the synth demo")
		backend    = flag.String("backend", "ebiten", "output backend: ebiten|oto|headless")
		sampleRate = flag.Float64("sample-rate", 44100, "output sample rate")
		latency    = flag.String("latency", "interactive", "latency hint: interactive|balanced|playback")
		volume     = flag.Float64("volume", 1.0, "master volume (0..1)")
		loop       = flag.Bool("loop", false, "loop file playback; use with -loops to count then stop")
		loops      = flag.Int("loops", 3, "when -loop, stop after N loops (0 = loop forever)")
		fxList     = flag.String("fx", "", "comma separated effects: filter,delay,reverb,chorus,distortion,eq,compressor")
		waveform   = flag.String("waveform", "sawtooth", "synth waveform: sine|square|sawtooth|triangle")
		analyze    = flag.Bool("analyze", false, "print analyzer readings while playing")
		outPath    = flag.String("out", "", "render offline to this float WAV file instead of playing")
		seconds    = flag.Float64("seconds", 3, "length of offline render")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	if err := run(entry, options{
		file: *filePath, backend: *backend, sampleRate: *sampleRate, latency: *latency,
		volume: *volume, loop: *loop, loops: *loops, fx: *fxList, waveform: *waveform,
		analyze: *analyze, out: *outPath, seconds: *seconds,
	}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}

type options struct {
	file, backend, latency, fx, waveform, out string
	sampleRate, volume, seconds               float64
	loop, analyze                             bool
	loops                                     int
}

func run(log *logrus.Entry, o options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	wf, err := synth.ParseWaveform(o.waveform)
	if err != nil {
		return fmt.Errorf("invalid -waveform %q: %w", o.waveform, err)
	}
	backend := o.backend
	if o.out != "" {
		backend = "headless"
	}

	cfg := sonicdeck.DefaultStudioConfig()
	cfg.SampleRate = o.sampleRate
	cfg.Latency = sonicdeck.ParseLatencyHint(o.latency)
	cfg.MasterVolume = o.volume
	cfg.Synth.Waveform = wf

	studio := sonicdeck.NewStudio(
		sonicdeck.WithStudioLogger(log),
		sonicdeck.WithPlayerOptions(sonicdeck.WithBackend(backend)),
	)
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = studio.Initialize(initCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer studio.Close()

	pl := studio.Player()
	if err := addEffects(pl, o.fx); err != nil {
		return err
	}

	if o.out != "" {
		return renderToFile(ctx, studio, o)
	}

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})
	if o.analyze {
		studio.Analyzer().Start(ctx, 0)
		g.Go(func() error {
			printAnalysis(ctx, studio, done)
			return nil
		})
	}
	g.Go(func() error {
		defer close(done)
		if o.file == "" {
			return playDemo(ctx, studio, nil)
		}
		return playFile(ctx, pl, o)
	})
	return g.Wait()
}

func addEffects(pl *sonicdeck.Player, list string) error {
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := effects.ParseKind(name)
		if err != nil {
			return fmt.Errorf("invalid -fx entry %q: %w", name, err)
		}
		u, err := effects.NewUnit(kind)
		if err != nil {
			return err
		}
		pl.AddEffect(u)
	}
	return nil
}

func playFile(ctx context.Context, pl *sonicdeck.Player, o options) error {
	data, err := os.ReadFile(o.file)
	if err != nil {
		return err
	}
	buf, err := pl.Load(ctx, data)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %.2fs, %d Hz\n", o.file, buf.Duration(), buf.SampleRate)
	ch := pl.Watch()
	if err := pl.Play(buf, sonicdeck.PlayOptions{Loop: o.loop}); err != nil {
		return err
	}
	loopCount := 0
	for {
		select {
		case <-ctx.Done():
			pl.Stop()
			return ctx.Err()
		case event := <-ch:
			switch event.Kind {
			case sonicdeck.EventPlaybackEnded:
				fmt.Println("playback completed")
				return nil
			case sonicdeck.EventLoopCompleted:
				loopCount++
				fmt.Printf("loop %d completed\n", loopCount)
				if o.loop && o.loops > 0 && loopCount >= o.loops {
					pl.Stop()
				}
			}
		}
	}
}

// playDemo sends the arpeggio through the MIDI bridge. advance moves time
// forward; nil sleeps in real time.
func playDemo(ctx context.Context, studio *sonicdeck.Studio, advance func(time.Duration) error) error {
	if advance == nil {
		advance = func(d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		}
	}
	bridge := studio.MIDI()
	defer bridge.Handle(midi.ControlChange(0, 123, 0), 0)
	for i, key := range demoNotes {
		ts := int32(i) * int32(demoStep/time.Millisecond)
		bridge.Handle(midi.NoteOn(0, key, 100), ts)
		if err := advance(demoStep * 3 / 4); err != nil {
			return err
		}
		bridge.Handle(midi.NoteOff(0, key), ts)
		if err := advance(demoStep / 4); err != nil {
			return err
		}
	}
	return advance(time.Duration(cfgRelease(studio) * float64(time.Second)))
}

func cfgRelease(studio *sonicdeck.Studio) float64 {
	return studio.Synth().Params().Envelope.Release + synth.ReleaseGrace
}

func renderToFile(ctx context.Context, studio *sonicdeck.Studio, o options) error {
	pl := studio.Player()
	var out []float32
	pull := func(d time.Duration) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		block, err := sonicdeck.RenderOffline(studio, d.Seconds())
		out = append(out, block...)
		return err
	}

	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return err
		}
		if _, err := pl.Load(ctx, data); err != nil {
			return err
		}
		if err := pl.Play(nil, sonicdeck.PlayOptions{Loop: o.loop}); err != nil {
			return err
		}
		if err := pull(time.Duration(o.seconds * float64(time.Second))); err != nil {
			return err
		}
	} else if err := playDemo(ctx, studio, pull); err != nil {
		return err
	}

	if err := os.WriteFile(o.out, sonicdeck.EncodeWAVFloat32LE(out, pl.SampleRate(), 2), 0o644); err != nil {
		return err
	}
	f := studio.Analyzer().Tick()
	fmt.Printf("wrote %s (%.2fs, peak %.3f)\n", o.out, float64(len(out)/2)/float64(pl.SampleRate()), f.Peak)
	return nil
}

func printAnalysis(ctx context.Context, studio *sonicdeck.Studio, done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	an := studio.Analyzer()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			line := fmt.Sprintf("peak %.3f rms %.3f", an.PeakLevel(), an.RMSLevel())
			if p := an.Pitch(); p != nil {
				line += fmt.Sprintf(" pitch %s (%.1f Hz)", p.NoteName, p.Frequency)
			}
			if bpm := an.BPM(); bpm != nil {
				line += fmt.Sprintf(" bpm %d", *bpm)
			}
			fmt.Println(line)
		}
	}
}

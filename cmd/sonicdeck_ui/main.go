package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/sonicdeck-go"
	"github.com/cbegin/sonicdeck-go/internal/analyzer"
	"github.com/cbegin/sonicdeck-go/internal/effects"
	"github.com/cbegin/sonicdeck-go/internal/synth"
)

const (
	windowW = 960
	windowH = 600

	baseNote = 60 // C4 on the A key
)

var (
	bgColor       = color.RGBA{24, 24, 32, 255}
	gridColor     = color.RGBA{50, 54, 68, 180}
	barColor      = color.RGBA{0, 170, 255, 255}
	waveColor     = color.RGBA{120, 255, 160, 255}
	keyColor      = color.RGBA{220, 220, 220, 255}
	keyDownColor  = color.RGBA{0, 0, 128, 255}
	blackKeyColor = color.RGBA{40, 40, 40, 255}
)

// pianoKeys maps the home row and the row above it to semitones over baseNote.
var pianoKeys = []struct {
	key    ebiten.Key
	offset int
	black  bool
}{
	{ebiten.KeyA, 0, false}, {ebiten.KeyW, 1, true}, {ebiten.KeyS, 2, false},
	{ebiten.KeyE, 3, true}, {ebiten.KeyD, 4, false}, {ebiten.KeyF, 5, false},
	{ebiten.KeyT, 6, true}, {ebiten.KeyG, 7, false}, {ebiten.KeyY, 8, true},
	{ebiten.KeyH, 9, false}, {ebiten.KeyU, 10, true}, {ebiten.KeyJ, 11, false},
	{ebiten.KeyK, 12, false},
}

var waveforms = []synth.Waveform{synth.Sine, synth.Square, synth.Sawtooth, synth.Triangle}

type game struct {
	studio *sonicdeck.Studio
	events <-chan sonicdeck.PlaybackEvent
	octave int
	wave   int
	held   map[ebiten.Key]int
	frame  analyzer.Frame
	status string
}

func newGame(studio *sonicdeck.Studio) *game {
	return &game{
		studio: studio,
		events: studio.Player().Watch(),
		wave:   2,
		held:   make(map[ebiten.Key]int),
		status: "A-K play notes, Z/X octave, 1-4 waveform, space play/pause",
	}
}

func (g *game) Update() error {
	syn := g.studio.Synth()
	for _, pk := range pianoKeys {
		if inpututil.IsKeyJustPressed(pk.key) {
			note := baseNote + 12*g.octave + pk.offset
			syn.PlayNote(note, synth.DefaultVelocity, 0)
			g.held[pk.key] = note
		}
		if inpututil.IsKeyJustReleased(pk.key) {
			if note, ok := g.held[pk.key]; ok {
				syn.StopNote(note)
				delete(g.held, pk.key)
			}
		}
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyZ) && g.octave > -4:
		g.octave--
	case inpututil.IsKeyJustPressed(ebiten.KeyX) && g.octave < 4:
		g.octave++
	}
	for i, k := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(k) {
			g.wave = i
			_ = syn.SetWaveform(waveforms[i])
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePlayback()
	}
	g.pollEvents()
	g.frame = g.studio.Analyzer().Tick()
	return nil
}

func (g *game) togglePlayback() {
	pl := g.studio.Player()
	var err error
	switch pl.State() {
	case sonicdeck.StatePlaying:
		pl.Pause()
		g.status = "paused"
	case sonicdeck.StatePaused:
		err = pl.Resume()
		g.status = "playing"
	default:
		err = pl.Play(nil, sonicdeck.PlayOptions{})
		g.status = "playing"
	}
	if err != nil {
		g.status = err.Error()
	}
}

func (g *game) pollEvents() {
	for {
		select {
		case ev := <-g.events:
			if ev.Kind == sonicdeck.EventPlaybackEnded {
				g.status = "playback ended"
			}
		default:
			return
		}
	}
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	g.drawSpectrum(screen, 20, 20, windowW-40, 260)
	g.drawWaveform(screen, 20, 300, windowW-40, 140)
	g.drawKeyboard(screen, 20, 460, windowW-40, 110)

	line := fmt.Sprintf("wave %s  octave %+d  voices %d  peak %.2f  rms %.2f",
		waveforms[g.wave], g.octave, g.studio.Synth().ActiveVoices(), g.frame.Peak, g.frame.RMS)
	if p := g.frame.Pitch; p != nil {
		line += fmt.Sprintf("  pitch %s", p.NoteName)
	}
	if bpm := g.frame.BPM; bpm != nil {
		line += fmt.Sprintf("  bpm %d", *bpm)
	}
	ebitenutil.DebugPrintAt(screen, line, 20, 2)
	ebitenutil.DebugPrintAt(screen, g.status, 20, windowH-16)
}

func (g *game) drawSpectrum(dst *ebiten.Image, x, y, w, h float32) {
	vector.DrawFilledRect(dst, x, y+h, w, 1, gridColor, false)
	bins := len(g.frame.Spectrum)
	if bins == 0 {
		return
	}
	// Bars are spaced logarithmically so low notes get room.
	const bars = 96
	barW := w / bars
	for i := 0; i < bars; i++ {
		lo := logIndex(i, bars, bins)
		hi := max(logIndex(i+1, bars, bins), lo+1)
		var v float64
		for _, s := range g.frame.Spectrum[lo:min(hi, bins)] {
			v = max(v, s)
		}
		barH := float32(v) * h
		vector.DrawFilledRect(dst, x+float32(i)*barW+1, y+h-barH, barW-1, barH, barColor, false)
	}
}

func logIndex(i, bars, bins int) int {
	if i <= 0 {
		return 0
	}
	frac := float64(i) / float64(bars)
	idx := int(float64(bins) * (math.Pow(2, frac*10) - 1) / 1023)
	return min(idx, bins)
}

func (g *game) drawWaveform(dst *ebiten.Image, x, y, w, h float32) {
	mid := y + h/2
	vector.DrawFilledRect(dst, x, mid, w, 1, gridColor, false)
	n := len(g.frame.Waveform)
	if n < 2 {
		return
	}
	step := w / float32(n-1)
	for i := 1; i < n; i++ {
		y0 := mid - float32(g.frame.Waveform[i-1])*h/2
		y1 := mid - float32(g.frame.Waveform[i])*h/2
		vector.StrokeLine(dst, x+float32(i-1)*step, y0, x+float32(i)*step, y1, 1, waveColor, true)
	}
}

func (g *game) drawKeyboard(dst *ebiten.Image, x, y, w, h float32) {
	whites := 0
	for _, pk := range pianoKeys {
		if !pk.black {
			whites++
		}
	}
	keyW := w / float32(whites)
	col := 0
	for _, pk := range pianoKeys {
		if pk.black {
			continue
		}
		c := keyColor
		if _, down := g.held[pk.key]; down {
			c = keyDownColor
		}
		vector.DrawFilledRect(dst, x+float32(col)*keyW+1, y, keyW-2, h, c, false)
		ebitenutil.DebugPrintAt(dst, pk.key.String(), int(x+float32(col)*keyW+keyW/2-3), int(y+h-18))
		col++
	}
	col = 0
	for _, pk := range pianoKeys {
		if !pk.black {
			col++
			continue
		}
		c := blackKeyColor
		if _, down := g.held[pk.key]; down {
			c = keyDownColor
		}
		vector.DrawFilledRect(dst, x+float32(col)*keyW-keyW/3, y, keyW*2/3, h*0.6, c, false)
	}
}

func (g *game) Layout(int, int) (int, int) { return windowW, windowH }

func main() {
	var (
		filePath = flag.String("file", "", "audio file loaded for space-bar playback")
		fxList   = flag.String("fx", "", "comma separated effects for file playback")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(log)

	studio := sonicdeck.NewStudio(sonicdeck.WithStudioLogger(entry))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := studio.Initialize(ctx, sonicdeck.DefaultStudioConfig())
	cancel()
	if err != nil {
		log.Fatal(err)
	}
	defer studio.Close()

	for _, name := range strings.Split(*fxList, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := effects.ParseKind(name)
		if err != nil {
			log.Fatalf("invalid -fx entry %q: %v", name, err)
		}
		u, err := effects.NewUnit(kind)
		if err != nil {
			log.Fatal(err)
		}
		studio.Player().AddEffect(u)
	}
	if *filePath != "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := studio.Player().Load(context.Background(), data); err != nil {
			log.Fatal(err)
		}
	}

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("sonicdeck")
	if err := ebiten.RunGame(newGame(studio)); err != nil {
		log.Fatal(err)
	}
}

package sonicdeck

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	intaudio "github.com/cbegin/sonicdeck-go/internal/audio"
	intfx "github.com/cbegin/sonicdeck-go/internal/effects"
	"github.com/cbegin/sonicdeck-go/internal/filter"
	"github.com/cbegin/sonicdeck-go/internal/graph"
)

const testRate = 8000

func newHeadlessPlayer(t *testing.T, opts ...PlayerOption) (*Player, *intaudio.HeadlessDevice) {
	t.Helper()
	dev := &intaudio.HeadlessDevice{}
	pl := NewPlayer(append([]PlayerOption{WithDevice(dev)}, opts...)...)
	if err := pl.Initialize(context.Background(), testRate, LatencyInteractive, 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = pl.Close() })
	return pl, dev
}

// constBuffer is seconds of a constant value in both channels.
func constBuffer(t *testing.T, seconds float64, v float32) *graph.Buffer {
	t.Helper()
	n := int(seconds * testRate)
	l, r := make([]float32, n), make([]float32, n)
	for i := range l {
		l[i], r[i] = v, v
	}
	buf, err := graph.NewBuffer(testRate, [][]float32{l, r})
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

// pcm16WAV is frames of a constant 16-bit stereo sample.
func pcm16WAV(rate, frames int, v int16) []byte {
	le := binary.LittleEndian
	data := frames * 4
	b := make([]byte, 44, 44+data)
	copy(b, "RIFF")
	le.PutUint32(b[4:], uint32(36+data))
	copy(b[8:], "WAVEfmt ")
	le.PutUint32(b[16:], 16)
	le.PutUint16(b[20:], 1)
	le.PutUint16(b[22:], 2)
	le.PutUint32(b[24:], uint32(rate))
	le.PutUint32(b[28:], uint32(rate*4))
	le.PutUint16(b[32:], 4)
	le.PutUint16(b[34:], 16)
	copy(b[36:], "data")
	le.PutUint32(b[40:], uint32(data))
	for i := 0; i < frames*2; i++ {
		b = le.AppendUint16(b, uint16(v))
	}
	return b
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInitializeFallsBackToDefaultRate(t *testing.T) {
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		pl := NewPlayer(WithDevice(&intaudio.HeadlessDevice{}))
		if err := pl.Initialize(context.Background(), rate, LatencyBalanced, 1); err != nil {
			t.Fatalf("initialize(%v): %v", rate, err)
		}
		if got := pl.SampleRate(); got != DefaultSampleRate {
			t.Errorf("rate %v: SampleRate = %d, want %d", rate, got, DefaultSampleRate)
		}
		_ = pl.Close()
	}
}

func TestInitializeFailure(t *testing.T) {
	boom := errors.New("no output")
	pl := NewPlayer(WithDevice(&intaudio.HeadlessDevice{FailOpen: boom}))
	err := pl.Initialize(context.Background(), 48000, LatencyPlayback, 1)
	var ierr *InitializationError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *InitializationError, got %T %v", err, err)
	}
	if ierr.SampleRate != 48000 || !errors.Is(err, boom) {
		t.Fatalf("unexpected error contents: %+v", ierr)
	}
	if pl.State() != StateUninitialized {
		t.Fatalf("state = %v after failed init", pl.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pl = NewPlayer(WithDevice(&intaudio.HeadlessDevice{}))
	err = pl.Initialize(ctx, 48000, LatencyInteractive, 1)
	if !errors.As(err, &ierr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled init: got %v", err)
	}
}

func TestPlayErrors(t *testing.T) {
	pl := NewPlayer(WithDevice(&intaudio.HeadlessDevice{}))
	if err := pl.Play(nil, PlayOptions{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("play before init: %v", err)
	}
	if err := pl.Initialize(context.Background(), testRate, LatencyInteractive, 1); err != nil {
		t.Fatal(err)
	}
	defer pl.Close()
	if err := pl.Play(nil, PlayOptions{}); !errors.Is(err, ErrNoSource) {
		t.Fatalf("play without buffer: %v", err)
	}
	if pl.State() != StateIdle {
		t.Fatalf("state changed to %v", pl.State())
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	if err := pl.Play(constBuffer(t, 2, 0.5), PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.5)
	if got := pl.CurrentTime(); !approx(got, 0.5) {
		t.Fatalf("playing time = %v, want 0.5", got)
	}

	pl.Pause()
	if pl.State() != StatePaused {
		t.Fatalf("state = %v", pl.State())
	}
	out := dev.PullSeconds(0.25)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v while paused", i, v)
		}
	}
	if got := pl.CurrentTime(); !approx(got, 0.5) {
		t.Fatalf("paused time = %v, want 0.5", got)
	}

	if err := pl.Resume(); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.25)
	if got := pl.CurrentTime(); !approx(got, 0.75) {
		t.Fatalf("resumed time = %v, want 0.75", got)
	}
}

// rampBuffer holds its own position: frame i of n is i/n.
func rampBuffer(t *testing.T, seconds float64) *graph.Buffer {
	t.Helper()
	n := int(seconds * testRate)
	ch := make([]float32, n)
	for i := range ch {
		ch[i] = float32(i) / float32(n)
	}
	buf, err := graph.NewBuffer(testRate, [][]float32{ch})
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestPauseResumeLoopedKeepsPosition(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	if err := pl.Play(rampBuffer(t, 1), PlayOptions{Loop: true}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(1.5)
	pl.Pause()
	if got := pl.CurrentTime(); !approx(got, 1.5) {
		t.Fatalf("paused time = %v, want 1.5", got)
	}
	if err := pl.Resume(); err != nil {
		t.Fatal(err)
	}
	if got := pl.CurrentTime(); !approx(got, 1.5) {
		t.Fatalf("time right after resume = %v, want 1.5", got)
	}
	out := dev.Pull(1)
	if got := float64(out[0]); !approx(got, 0.5) {
		t.Fatalf("resumed at buffer position %v, want 0.5", got)
	}
	dev.PullSeconds(0.25)
	if got := pl.CurrentTime(); got < 1.75 || got > 1.76 {
		t.Fatalf("time after resume = %v, want about 1.75", got)
	}
}

func TestDurationSurvivesSeekAndPause(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	if err := pl.Play(constBuffer(t, 1, 0.5), PlayOptions{Duration: 0.5}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.2)
	pl.Seek(0)
	dev.PullSeconds(0.1)
	pl.Pause()
	if err := pl.Resume(); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.15)
	if pl.State() != StatePlaying {
		t.Fatalf("ended early: state %v", pl.State())
	}
	dev.PullSeconds(0.1)
	waitFor(t, "duration to run out", func() bool { return pl.State() == StateIdle })
}

func TestDoubleStopSendsOneEvent(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	events := pl.Watch()
	if err := pl.Play(constBuffer(t, 1, 0.5), PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.1)
	pl.Stop()
	pl.Stop()
	if pl.State() != StateIdle || pl.CurrentTime() != 0 {
		t.Fatalf("after stop: state %v time %v", pl.State(), pl.CurrentTime())
	}
	if ev := <-events; ev.Kind != EventPlaybackEnded {
		t.Fatalf("event = %+v", ev)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected second event %+v", ev)
	default:
	}
}

func TestSeekClampsAndRestarts(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	buf := constBuffer(t, 1, 0.5)
	if err := pl.Play(buf, PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.1)
	pl.Seek(0.6)
	if got := pl.CurrentTime(); !approx(got, 0.6) {
		t.Fatalf("after seek: %v", got)
	}
	pl.Seek(-3)
	if got := pl.CurrentTime(); !approx(got, 0) {
		t.Fatalf("negative seek: %v", got)
	}

	pl.Pause()
	pl.Seek(5)
	if got := pl.CurrentTime(); !approx(got, 1) {
		t.Fatalf("paused seek past end: %v", got)
	}

	pl.Stop()
	pl.Seek(0.25)
	if err := pl.Resume(); err != nil {
		t.Fatal(err)
	}
	if pl.State() != StatePlaying {
		t.Fatalf("resume after idle seek: state %v", pl.State())
	}
	dev.PullSeconds(0.25)
	if got := pl.CurrentTime(); !approx(got, 0.5) {
		t.Fatalf("time after idle seek = %v, want 0.5", got)
	}
}

func TestNaturalEnd(t *testing.T) {
	ended := make(chan struct{}, 1)
	pl, dev := newHeadlessPlayer(t, WithOnEnded(func() { ended <- struct{}{} }))
	events := pl.Watch()
	if err := pl.Play(constBuffer(t, 0.5, 0.5), PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.6)

	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("onEnded not called")
	}
	pl.Wait()
	if pl.State() != StateIdle {
		t.Fatalf("state = %v", pl.State())
	}
	if ev := <-events; ev.Kind != EventPlaybackEnded {
		t.Fatalf("event = %+v", ev)
	}
}

func TestStopDoesNotCallOnEnded(t *testing.T) {
	called := make(chan struct{}, 1)
	pl, dev := newHeadlessPlayer(t, WithOnEnded(func() { called <- struct{}{} }))
	if err := pl.Play(constBuffer(t, 0.5, 0.5), PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.1)
	pl.Stop()
	dev.PullSeconds(0.6)
	select {
	case <-called:
		t.Fatal("onEnded called after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoopEvents(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	events := pl.Watch()
	if err := pl.Play(constBuffer(t, 0.1, 0.5), PlayOptions{Loop: true}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.35)
	loops := 0
	for len(events) > 0 {
		if ev := <-events; ev.Kind == EventLoopCompleted {
			loops++
		}
	}
	if loops != 3 {
		t.Fatalf("loops = %d, want 3", loops)
	}
	if pl.State() != StatePlaying {
		t.Fatalf("looping player state = %v", pl.State())
	}
}

func TestReplacingSessionSkipsOnEnded(t *testing.T) {
	var calls int
	done := make(chan struct{}, 4)
	pl, dev := newHeadlessPlayer(t, WithOnEnded(func() { done <- struct{}{} }))
	first := constBuffer(t, 0.2, 0.25)
	if err := pl.Play(first, PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	dev.PullSeconds(0.1)
	if err := pl.Play(constBuffer(t, 0.2, 0.5), PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	out := dev.PullSeconds(0.05)
	if got := out[len(out)-1]; !approx(float64(got), 0.5) {
		t.Fatalf("second session output = %v, want 0.5 alone", got)
	}
	dev.PullSeconds(0.3)
	waitFor(t, "natural end", func() bool { return pl.State() == StateIdle })
	timeout := time.After(50 * time.Millisecond)
loop:
	for {
		select {
		case <-done:
			calls++
		case <-timeout:
			break loop
		}
	}
	if calls != 1 {
		t.Fatalf("onEnded calls = %d, want 1", calls)
	}
}

func TestEffectsApplyFromNextPlay(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	hp, err := intfx.NewUnitWith(intfx.FilterSettings{Type: filter.Highpass, Frequency: 200, Q: 0.707})
	if err != nil {
		t.Fatal(err)
	}
	pl.AddEffect(hp)
	buf := constBuffer(t, 1, 0.5)
	if err := pl.Play(buf, PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	out := dev.PullSeconds(0.2)
	if got := math.Abs(float64(out[len(out)-1])); got > 0.01 {
		t.Fatalf("highpass should remove DC, got %v", got)
	}

	if !pl.RemoveEffect(hp.ID()) {
		t.Fatal("remove failed")
	}
	if pl.RemoveEffect(uuid.New()) {
		t.Fatal("removing unknown id reported success")
	}
	out = dev.PullSeconds(0.05)
	if got := math.Abs(float64(out[len(out)-1])); got > 0.01 {
		t.Fatalf("running path changed after removal: %v", got)
	}

	if err := pl.Play(buf, PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	out = dev.PullSeconds(0.05)
	if got := out[len(out)-1]; !approx(float64(got), 0.5) {
		t.Fatalf("dry output = %v, want 0.5", got)
	}
	if len(pl.Effects()) != 0 {
		t.Fatalf("effects = %d", len(pl.Effects()))
	}
}

func TestLoad(t *testing.T) {
	pl, _ := newHeadlessPlayer(t)
	_, err := pl.Load(context.Background(), []byte("not audio at all"))
	var derr *DecodeError
	if !errors.As(err, &derr) || !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported DecodeError, got %v", err)
	}
	if pl.Loaded() != nil {
		t.Fatal("failed load installed a buffer")
	}

	buf, err := pl.Load(context.Background(), pcm16WAV(testRate, 400, 8192))
	if err != nil {
		t.Fatalf("load wav: %v", err)
	}
	if buf.Length() != 400 || pl.Loaded() != buf {
		t.Fatalf("loaded length %d", buf.Length())
	}
	if got := pl.Duration(); !approx(got, 0.05) {
		t.Fatalf("duration = %v", got)
	}
	if err := pl.Play(nil, PlayOptions{}); err != nil {
		t.Fatalf("play loaded: %v", err)
	}
}

func TestVolumeClamps(t *testing.T) {
	pl, dev := newHeadlessPlayer(t)
	pl.SetVolume(2)
	if pl.Volume() != 1 {
		t.Fatalf("volume = %v", pl.Volume())
	}
	pl.SetVolume(-1)
	if pl.Volume() != 0 {
		t.Fatalf("volume = %v", pl.Volume())
	}
	pl.SetVolume(0.5)
	if err := pl.Play(constBuffer(t, 1, 0.5), PlayOptions{}); err != nil {
		t.Fatal(err)
	}
	out := dev.PullSeconds(0.01)
	if got := out[len(out)-1]; !approx(float64(got), 0.25) {
		t.Fatalf("output = %v, want 0.25", got)
	}
}

func TestParseLatencyHint(t *testing.T) {
	cases := map[string]LatencyHint{
		"balanced":   LatencyBalanced,
		" Playback ": LatencyPlayback,
		"":           LatencyInteractive,
		"bogus":      LatencyInteractive,
	}
	for in, want := range cases {
		if got := ParseLatencyHint(in); got != want {
			t.Errorf("ParseLatencyHint(%q) = %v, want %v", in, got, want)
		}
	}
	if LatencyPlayback.Duration() != 100*time.Millisecond {
		t.Fatal("playback latency")
	}
}

// Package sonicdeck is a real-time audio engine: buffer playback through an
// effects chain, a polyphonic synthesizer and a master-bus analyzer, all
// rendered against one sample-accurate clock.
package sonicdeck

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	intaudio "github.com/cbegin/sonicdeck-go/internal/audio"
	"github.com/cbegin/sonicdeck-go/internal/decode"
	intfx "github.com/cbegin/sonicdeck-go/internal/effects"
	"github.com/cbegin/sonicdeck-go/internal/graph"
)

// DefaultSampleRate is used when Initialize gets a non-finite or
// non-positive rate.
const DefaultSampleRate = 44100

// PlaybackEvent carries transport events from Watch().
type PlaybackEvent struct {
	Kind    int // EventLoopCompleted or EventPlaybackEnded
	Session uuid.UUID
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

// State is the transport state of a Player.
type State int

const (
	StateUninitialized State = iota
	StateIdle
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "uninitialized"
	}
}

// LatencyHint trades output latency against robustness.
type LatencyHint int

const (
	LatencyInteractive LatencyHint = iota
	LatencyBalanced
	LatencyPlayback
)

// Duration is the device buffer length requested for h.
func (h LatencyHint) Duration() time.Duration {
	switch h {
	case LatencyBalanced:
		return 40 * time.Millisecond
	case LatencyPlayback:
		return 100 * time.Millisecond
	default:
		return 10 * time.Millisecond
	}
}

// ParseLatencyHint accepts "interactive", "balanced" and "playback";
// anything else is interactive.
func ParseLatencyHint(s string) LatencyHint {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "balanced":
		return LatencyBalanced
	case "playback":
		return LatencyPlayback
	default:
		return LatencyInteractive
	}
}

// PlayOptions control one Play call. StartTime is on the audio clock; a time
// in the past starts immediately. Duration <= 0 plays to the end.
type PlayOptions struct {
	StartTime float64
	Offset    float64
	Duration  float64
	Loop      bool
}

type PlayerOption func(*playerConfig)

type playerConfig struct {
	backend   intaudio.Backend
	device    intaudio.Device
	log       *logrus.Entry
	onEnded   func()
	sampleTap func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		backend: intaudio.BackendEbiten,
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
}

// WithBackend selects the output backend: "ebiten" (default), "oto" or "headless".
func WithBackend(name string) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = intaudio.Backend(name)
	}
}

// WithDevice supplies the output device directly, overriding WithBackend.
func WithDevice(dev intaudio.Device) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.device = dev
	}
}

func WithLogger(log *logrus.Entry) PlayerOption {
	return func(cfg *playerConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithOnEnded installs a callback for natural end of playback. It runs on
// its own goroutine, never for Stop or a replaced session.
func WithOnEnded(fn func()) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.onEnded = fn
	}
}

// WithSampleTap installs a callback invoked with each rendered master block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// session is one started buffer source. Pausing, seeking and resuming all
// replace it.
type session struct {
	id       uuid.UUID
	buffer   *graph.Buffer
	source   *graph.BufferSource
	loop     bool
	duration float64 // requested play length from began; <= 0 is unbounded
	began    float64 // audio time the source starts
}

// remaining is the play length left at audio time now, or 0 when unbounded.
func (s *session) remaining(now, sampleRate float64) float64 {
	if s.duration <= 0 {
		return 0
	}
	return math.Max(s.duration-math.Max(now-s.began, 0), 1/sampleRate)
}

// sessionNode runs a session's source through its built effects path.
type sessionNode struct {
	source  *graph.BufferSource
	path    *intfx.Path
	scratch []float32
}

func (n *sessionNode) Process(dst []float32, t float64) bool {
	if cap(n.scratch) < len(dst) {
		n.scratch = make([]float32, len(dst))
	}
	buf := n.scratch[:len(dst)]
	clear(buf)
	alive := n.source.Process(buf, t)
	n.path.ProcessInterleaved(buf)
	for i, v := range buf {
		dst[i] += v
	}
	return alive
}

// Player is the playback engine. It owns the graph context that the synth
// and analyzer share.
type Player struct {
	cfg   playerConfig
	log   *logrus.Entry
	chain *intfx.Chain

	mu                sync.Mutex
	state             State
	graph             *graph.Context
	device            intaudio.Device
	sampleRate        int
	volume            float64
	loaded            *graph.Buffer
	sess              *session
	playbackStartTime float64
	pauseTime         float64
	seekOffset        float64
	hasSeek           bool
	done              chan struct{}

	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

func NewPlayer(opts ...PlayerOption) *Player {
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log.WithField("component", "player")
	return &Player{
		cfg:    cfg,
		log:    log,
		chain:  intfx.NewChain(cfg.log),
		volume: 1,
	}
}

// Initialize opens the output device and blocks until it is ready or ctx
// is done. Calling it again reopens the device.
func (p *Player) Initialize(ctx context.Context, sampleRate float64, latency LatencyHint, masterVolume float64) error {
	rate := DefaultSampleRate
	if !math.IsNaN(sampleRate) && !math.IsInf(sampleRate, 0) && sampleRate > 0 {
		rate = int(math.Round(sampleRate))
	} else {
		p.log.WithField("requested", sampleRate).Warn("invalid sample rate, using default")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateUninitialized {
		if _, done := p.stopLocked(); done != nil {
			close(done)
		}
		p.closeDeviceLocked()
		p.graph.Close()
		p.graph = nil
		p.state = StateUninitialized
	}

	vol := clampUnit(masterVolume)
	g := graph.NewContext(rate, vol)
	if p.cfg.sampleTap != nil {
		g.AddTap(p.cfg.sampleTap)
	}
	dev := p.cfg.device
	if dev == nil {
		dev = intaudio.NewDevice(p.cfg.backend)
	}
	cfg := intaudio.Config{SampleRate: rate, Latency: latency.Duration()}
	if err := dev.Open(ctx, cfg, g); err != nil {
		p.log.WithError(err).WithField("sample_rate", rate).Error("audio output unavailable")
		return &InitializationError{SampleRate: rate, Err: err}
	}

	p.graph = g
	p.device = dev
	p.sampleRate = rate
	p.volume = vol
	p.state = StateIdle
	p.log.WithFields(logrus.Fields{"sample_rate": rate, "latency": cfg.Latency}).Info("audio output ready")
	return nil
}

// Load decodes src. On success the buffer becomes the one Play falls back
// to; on failure nothing changes.
func (p *Player) Load(ctx context.Context, src []byte) (*graph.Buffer, error) {
	type result struct {
		buf *graph.Buffer
		err error
	}
	ch := make(chan result, 1)
	go func() {
		buf, err := decode.Decode(ctx, src)
		ch <- result{buf, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r = <-ch:
	}
	if r.err != nil {
		p.log.WithError(r.err).Warn("decode failed")
		return nil, r.err
	}

	p.mu.Lock()
	p.loaded = r.buf
	p.hasSeek = false
	p.mu.Unlock()
	p.log.WithFields(logrus.Fields{
		"sample_rate": r.buf.SampleRate,
		"channels":    r.buf.NumberOfChannels(),
		"duration":    r.buf.Duration(),
	}).Debug("buffer loaded")
	return r.buf, nil
}

// Play starts buf, or the loaded buffer when buf is nil. An active session
// is stopped first.
func (p *Player) Play(buf *graph.Buffer, opts PlayOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateUninitialized {
		return ErrNotInitialized
	}
	if buf == nil {
		buf = p.loaded
	}
	if buf == nil {
		return ErrNoSource
	}
	p.haltLocked()
	p.loaded = buf
	p.hasSeek = false
	p.startLocked(buf, opts)
	return nil
}

func (p *Player) startLocked(buf *graph.Buffer, opts PlayOptions) {
	now := p.graph.CurrentTime()
	when := math.Max(opts.StartTime, now)
	// elapsed is the transport position; looping sources fold it into the buffer.
	elapsed := math.Max(opts.Offset, 0)
	dur := buf.Duration()
	offset := math.Min(elapsed, dur)
	if opts.Loop && dur > 0 {
		offset = math.Mod(elapsed, dur)
	} else {
		elapsed = offset
	}

	sess := &session{id: uuid.New(), buffer: buf, loop: opts.Loop, duration: opts.Duration, began: when}
	sess.source = graph.NewBufferSource(buf, p.sampleRate, graph.SourceOptions{
		When:     when,
		Offset:   offset,
		Duration: opts.Duration,
		Loop:     opts.Loop,
		OnLoop: func() {
			p.sendEvent(PlaybackEvent{Kind: EventLoopCompleted, Session: sess.id})
		},
	})
	path := p.chain.Build(p.sampleRate)
	p.graph.Connect(&sessionNode{source: sess.source, path: path})

	p.sess = sess
	p.playbackStartTime = when - elapsed
	p.pauseTime = 0
	p.state = StatePlaying
	if p.done == nil {
		p.done = make(chan struct{})
	}
	sess.source.Ended().Then(func(reason graph.EndReason) {
		if reason == graph.EndNatural {
			p.finish(sess)
		}
	})
	p.log.WithFields(logrus.Fields{
		"session": sess.id, "when": when, "offset": offset, "loop": opts.Loop, "effects": path.Len(),
	}).Debug("playback started")
}

// finish handles the natural end of sess unless it was already replaced.
func (p *Player) finish(sess *session) {
	p.mu.Lock()
	if p.sess != sess {
		p.mu.Unlock()
		return
	}
	p.sess = nil
	p.state = StateIdle
	p.playbackStartTime, p.pauseTime = 0, 0
	done := p.done
	p.done = nil
	p.mu.Unlock()

	p.log.WithField("session", sess.id).Debug("playback ended")
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Session: sess.id})
	if done != nil {
		close(done)
	}
	if p.cfg.onEnded != nil {
		p.cfg.onEnded()
	}
}

// haltLocked stops the current source without touching transport times.
func (p *Player) haltLocked() *session {
	sess := p.sess
	if sess != nil {
		sess.source.Stop()
		p.sess = nil
	}
	return sess
}

// Pause halts the source and remembers the elapsed time.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return
	}
	now := p.graph.CurrentTime()
	p.pauseTime = math.Max(now-p.playbackStartTime, 0)
	sess := p.haltLocked()
	p.sess = &session{
		id: sess.id, buffer: sess.buffer, source: sess.source, loop: sess.loop,
		duration: sess.remaining(now, float64(p.sampleRate)),
	}
	p.state = StatePaused
}

// Resume restarts a paused session from where it was paused, or an idle
// player from a stored seek offset.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StatePaused:
		paused := p.sess
		p.sess = nil
		p.startLocked(paused.buffer, PlayOptions{Offset: p.pauseTime, Loop: paused.loop, Duration: paused.duration})
	case StateIdle:
		if !p.hasSeek {
			return nil
		}
		if p.loaded == nil {
			return ErrNoSource
		}
		p.hasSeek = false
		p.startLocked(p.loaded, PlayOptions{Offset: p.seekOffset})
	}
	return nil
}

// ResumeAudio is an alias for Resume.
func (p *Player) ResumeAudio() error { return p.Resume() }

// Stop halts playback and resets the transport. Stopping an idle player is
// a no-op.
func (p *Player) Stop() {
	p.mu.Lock()
	sess, done := p.stopLocked()
	p.mu.Unlock()
	if sess == nil {
		return
	}
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Session: sess.id})
	if done != nil {
		close(done)
	}
}

func (p *Player) stopLocked() (*session, chan struct{}) {
	var sess *session
	if p.state == StatePaused {
		sess, p.sess = p.sess, nil
	} else {
		sess = p.haltLocked()
	}
	if p.state != StateUninitialized {
		p.state = StateIdle
	}
	p.playbackStartTime, p.pauseTime = 0, 0
	p.hasSeek = false
	done := p.done
	p.done = nil
	return sess, done
}

// Seek clamps t to the buffer duration. While playing it restarts at t with
// the same loop setting and the play length still left; otherwise t is used
// by the next Resume.
func (p *Player) Seek(t float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := p.loaded
	if p.sess != nil {
		buf = p.sess.buffer
	}
	var dur float64
	if buf != nil {
		dur = buf.Duration()
	}
	t = math.Min(math.Max(t, 0), dur)
	if math.IsNaN(t) {
		t = 0
	}

	switch p.state {
	case StatePlaying:
		old := p.haltLocked()
		rest := old.remaining(p.graph.CurrentTime(), float64(p.sampleRate))
		p.startLocked(old.buffer, PlayOptions{Offset: t, Loop: old.loop, Duration: rest})
	case StatePaused:
		p.pauseTime = t
	default:
		p.seekOffset = t
		p.hasSeek = true
	}
}

// CurrentTime is the playback position in seconds: elapsed time while
// playing, the paused position while paused, and 0 otherwise. Loops are not
// folded back into the buffer length.
func (p *Player) CurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StatePlaying:
		return math.Max(p.graph.CurrentTime()-p.playbackStartTime, 0)
	case StatePaused:
		return p.pauseTime
	default:
		return 0
	}
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Loaded returns the buffer Play falls back to.
func (p *Player) Loaded() *graph.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

// Duration of the loaded buffer, or 0.
func (p *Player) Duration() float64 {
	if buf := p.Loaded(); buf != nil {
		return buf.Duration()
	}
	return 0
}

// SampleRate is the rate chosen by Initialize.
func (p *Player) SampleRate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sampleRate
}

// Graph is the render context, nil before Initialize.
func (p *Player) Graph() *graph.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.graph
}

// Device is the open output device, nil before Initialize.
func (p *Player) Device() intaudio.Device {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device
}

// SetVolume sets the master gain, clamped to [0, 1].
func (p *Player) SetVolume(v float64) {
	v = clampUnit(v)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = v
	if p.graph != nil {
		p.graph.Master().SetValue(v)
	}
}

func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// AddEffect appends u to the chain. It applies from the next Play.
func (p *Player) AddEffect(u *intfx.Unit) {
	p.chain.Add(u)
}

// RemoveEffect removes the unit with id. A playing path keeps it.
func (p *Player) RemoveEffect(id uuid.UUID) bool {
	return p.chain.Remove(id)
}

// Effects lists the chain in insertion order.
func (p *Player) Effects() []*intfx.Unit {
	return p.chain.Units()
}

// Close stops playback, closes the device and the render context. Pending
// clock timers resolve as stopped. The player returns to the
// uninitialized state.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, done := p.stopLocked(); done != nil {
		close(done)
	}
	err := p.closeDeviceLocked()
	if p.graph != nil {
		p.graph.Close()
	}
	p.state = StateUninitialized
	return err
}

func (p *Player) closeDeviceLocked() error {
	if p.device == nil {
		return nil
	}
	err := p.device.Close()
	p.device = nil
	return err
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

// Wait blocks until the current playback ends or is stopped. A looping
// session without a duration never ends on its own.
// Wait returns immediately if nothing is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events:
//   - EventLoopCompleted: a looping source wrapped around
//   - EventPlaybackEnded: playback ended naturally or was stopped
//
// The channel is buffered (cap 8); events are dropped when it is full.
// Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package graph is the audio graph runtime shared by playback, synthesis and
// analysis: a sample-accurate clock, a master gain stage, source mixing and
// taps on the master output.
package graph

import (
	"sync"
	"sync/atomic"
)

// Source adds rendered stereo frames (interleaved L,R) into dst. t is the
// audio time of the first frame. Returning false detaches the source.
type Source interface {
	Process(dst []float32, t float64) bool
}

// SourceFunc adapts a function to Source.
type SourceFunc func(dst []float32, t float64) bool

func (f SourceFunc) Process(dst []float32, t float64) bool { return f(dst, t) }

type timer struct {
	at float64
	c  *Completion
}

// Context owns the audio clock. Its clock only advances while frames are
// pulled through Process, so time is counted in rendered samples rather than
// wall-clock time.
type Context struct {
	sampleRate int
	frames     atomic.Uint64

	mu      sync.Mutex
	closed  bool
	sources []Source
	timers  []timer
	taps    []func([]float32)
	master  *Param
	gainBuf []float64
	mixBuf  []float32
}

// NewContext creates a context rendering at sampleRate with the given master gain.
func NewContext(sampleRate int, masterGain float64) *Context {
	return &Context{
		sampleRate: sampleRate,
		master:     NewParam(masterGain),
	}
}

func (c *Context) SampleRate() int { return c.sampleRate }

// CurrentTime returns the audio time in seconds of the next frame to render.
func (c *Context) CurrentTime() float64 {
	return float64(c.frames.Load()) / float64(c.sampleRate)
}

// Master is the gain applied to the mix of all sources.
func (c *Context) Master() *Param { return c.master }

// Connect attaches src to the master bus. It is ignored after Close.
func (c *Context) Connect(src Source) {
	c.mu.Lock()
	if !c.closed {
		c.sources = append(c.sources, src)
	}
	c.mu.Unlock()
}

// Disconnect detaches src. Unknown sources are ignored.
func (c *Context) Disconnect(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.sources {
		if s == src {
			c.sources = append(c.sources[:i], c.sources[i+1:]...)
			return
		}
	}
}

// Connected reports whether src is attached to the master bus.
func (c *Context) Connected(src Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sources {
		if s == src {
			return true
		}
	}
	return false
}

// AddTap registers fn to receive every rendered master block. fn runs on the
// render goroutine and must not block. The returned func removes the tap.
func (c *Context) AddTap(fn func([]float32)) (remove func()) {
	c.mu.Lock()
	c.taps = append(c.taps, fn)
	idx := len(c.taps) - 1
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		if idx < len(c.taps) {
			c.taps[idx] = nil
		}
		c.mu.Unlock()
	}
}

// After returns a completion resolved once rendering reaches audio time t.
// After Close it resolves immediately with EndStopped.
func (c *Context) After(t float64) *Completion {
	done := NewCompletion()
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		done.Resolve(EndStopped)
	case t <= c.CurrentTime():
		done.Resolve(EndNatural)
	default:
		c.timers = append(c.timers, timer{at: t, c: done})
	}
	return done
}

// Close detaches every source and resolves pending timers with EndStopped.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, tm := range c.timers {
		tm.c.Resolve(EndStopped)
	}
	c.timers = nil
	clear(c.sources)
	c.sources = nil
}

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Process renders len(dst)/2 stereo frames of the master bus.
func (c *Context) Process(dst []float32) {
	frames := len(dst) / 2
	for i := range dst {
		dst[i] = 0
	}
	if frames == 0 {
		return
	}
	sr := float64(c.sampleRate)

	c.mu.Lock()
	defer c.mu.Unlock()

	t0 := float64(c.frames.Load()) / sr
	if cap(c.mixBuf) < len(dst) {
		c.mixBuf = make([]float32, len(dst))
	}
	mix := c.mixBuf[:frames*2]
	for i := range mix {
		mix[i] = 0
	}
	live := c.sources[:0]
	for _, src := range c.sources {
		if src.Process(mix, t0) {
			live = append(live, src)
		}
	}
	for i := len(live); i < len(c.sources); i++ {
		c.sources[i] = nil
	}
	c.sources = live

	if cap(c.gainBuf) < frames {
		c.gainBuf = make([]float64, frames)
	}
	gain := c.gainBuf[:frames]
	c.master.Fill(gain, t0, 1/sr)
	for f := 0; f < frames; f++ {
		g := float32(gain[f])
		dst[f*2] = softClip(mix[f*2] * g)
		dst[f*2+1] = softClip(mix[f*2+1] * g)
	}

	c.frames.Add(uint64(frames))
	tEnd := float64(c.frames.Load()) / sr
	pending := c.timers[:0]
	for _, tm := range c.timers {
		if tm.at <= tEnd {
			tm.c.Resolve(EndNatural)
			continue
		}
		pending = append(pending, tm)
	}
	c.timers = pending

	for _, tap := range c.taps {
		if tap != nil {
			tap(dst)
		}
	}
}

func softClip(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

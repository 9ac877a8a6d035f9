package graph

import (
	"math"
	"sync/atomic"
)

// SourceOptions describes how a BufferSource plays its buffer.
type SourceOptions struct {
	When     float64 // audio time to start; values in the past start immediately
	Offset   float64 // seconds into the buffer
	Duration float64 // seconds to play; <= 0 plays to the end (or forever when looping)
	Loop     bool
	// OnLoop runs on the render goroutine each time playback wraps.
	OnLoop func()
}

// BufferSource plays a Buffer once. Like a hardware voice it cannot be
// restarted; create a new one for every start.
type BufferSource struct {
	buf       *Buffer
	rate      float64 // output sample rate
	step      float64 // buffer frames per output frame
	opts      SourceOptions
	pos       float64
	remaining float64 // output frames left when Duration is set, -1 otherwise
	stopped   atomic.Bool
	ended     *Completion
}

// NewBufferSource prepares buf for playback at the given output sample rate.
func NewBufferSource(buf *Buffer, outputRate int, opts SourceOptions) *BufferSource {
	s := &BufferSource{
		buf:       buf,
		rate:      float64(outputRate),
		step:      float64(buf.SampleRate) / float64(outputRate),
		opts:      opts,
		remaining: -1,
		ended:     NewCompletion(),
	}
	offset := math.Max(0, opts.Offset)
	s.pos = offset * float64(buf.SampleRate)
	if opts.Loop && buf.Length() > 0 {
		s.pos = math.Mod(s.pos, float64(buf.Length()))
	}
	if opts.Duration > 0 {
		s.remaining = opts.Duration * float64(outputRate)
	}
	return s
}

// Ended resolves with EndNatural when playback runs out, or EndStopped after Stop.
func (s *BufferSource) Ended() *Completion { return s.ended }

// Stop halts the source. Stopping twice, or after a natural end, is a no-op.
func (s *BufferSource) Stop() {
	s.stopped.Store(true)
	s.ended.Resolve(EndStopped)
}

func (s *BufferSource) Process(dst []float32, t float64) bool {
	if s.stopped.Load() {
		return false
	}
	n := s.buf.Length()
	if n == 0 {
		s.ended.Resolve(EndNatural)
		return false
	}
	frames := len(dst) / 2
	for f := 0; f < frames; f++ {
		if t+float64(f)/s.rate < s.opts.When {
			continue
		}
		if s.pos >= float64(n) {
			if !s.opts.Loop {
				s.ended.Resolve(EndNatural)
				return false
			}
			s.pos = math.Mod(s.pos, float64(n))
			if s.opts.OnLoop != nil {
				s.opts.OnLoop()
			}
		}
		l, r := s.buf.frame(s.pos)
		dst[f*2] += l
		dst[f*2+1] += r
		s.pos += s.step
		if s.remaining >= 0 {
			s.remaining--
			if s.remaining <= 0 {
				s.ended.Resolve(EndNatural)
				return false
			}
		}
	}
	return true
}

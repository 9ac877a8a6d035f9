package synth

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/sonicdeck-go/internal/filter"
	"github.com/cbegin/sonicdeck-go/internal/graph"
	"github.com/cbegin/sonicdeck-go/internal/lfo"
)

// Voice is one sounding note: oscillator, biquad filter and gain envelope,
// with optional vibrato. The exported fields are fixed at note-on.
type Voice struct {
	Note      int
	Frequency float64
	Velocity  int
	StartTime float64
	Waveform  Waveform
	Envelope  Envelope
	Filter    FilterSettings
	LFO       *LFOSettings // nil when vibrato is off

	gain    *graph.Param
	playing atomic.Bool
	stopAt  atomic.Uint64 // float64 bits; +Inf until released
	grace   float64
	ended   *graph.Completion
	coeffs  atomic.Pointer[filter.Coefficients]

	// render state
	phase   float64
	section *filter.Section
	vibrato *lfo.LFO
	gainBuf []float64
}

func newVoice(note, velocity int, t0 float64, p Params, sampleRate int, grace float64) *Voice {
	v := &Voice{
		Note:      note,
		Frequency: NoteFrequency(note),
		Velocity:  velocity,
		StartTime: t0,
		Waveform:  p.Waveform,
		Envelope:  p.Envelope,
		Filter:    p.Filter,
		gain:      graph.NewParam(0),
		grace:     grace,
		ended:     graph.NewCompletion(),
		section:   filter.NewSection(filter.Design(p.Filter.Type, p.Filter.Frequency, p.Filter.Q, float64(sampleRate))),
	}
	if p.LFO.Rate > 0 && p.LFO.Amount > 0 {
		l := p.LFO
		v.LFO = &l
		v.vibrato = lfo.New(lfo.Sine, l.Rate, l.Amount)
	}
	v.stopAt.Store(math.Float64bits(math.Inf(1)))
	v.playing.Store(true)

	peak := float64(velocity) / 127
	env := p.Envelope
	v.gain.SetValueAtTime(0, t0)
	v.gain.LinearRampToValueAtTime(peak, t0+env.Attack)
	v.gain.LinearRampToValueAtTime(peak*env.Sustain, t0+env.Attack+env.Decay)
	return v
}

// Gain is the envelope parameter driving the voice amplitude.
func (v *Voice) Gain() *graph.Param { return v.gain }

// IsPlaying is false once the voice has been released.
func (v *Voice) IsPlaying() bool { return v.playing.Load() }

// StopTime is the audio time the oscillator stops, or +Inf while held.
func (v *Voice) StopTime() float64 { return math.Float64frombits(v.stopAt.Load()) }

// Ended resolves once the release tail and grace period have been rendered.
func (v *Voice) Ended() *graph.Completion { return v.ended }

// release ramps the envelope from its live value to zero and schedules the
// oscillator stop. Releasing twice is a no-op.
func (v *Voice) release(now, releaseTime float64) *graph.Completion {
	if !v.playing.CompareAndSwap(true, false) {
		return v.ended
	}
	v.gain.CancelAndHoldAtTime(now)
	v.gain.LinearRampToValueAtTime(0, now+releaseTime)
	v.stopAt.Store(math.Float64bits(now + releaseTime))
	return v.ended
}

func (v *Voice) setFilter(c filter.Coefficients) {
	v.coeffs.Store(&c)
}

// render adds the voice into dst (interleaved stereo). It returns false once
// the voice has finished and resolved its completion.
func (v *Voice) render(dst []float32, t, sr float64) bool {
	frames := len(dst) / 2
	if cap(v.gainBuf) < frames {
		v.gainBuf = make([]float64, frames)
	}
	g := v.gainBuf[:frames]
	v.gain.Fill(g, t, 1/sr)
	if c := v.coeffs.Swap(nil); c != nil {
		v.section.SetCoefficients(*c)
	}
	stopAt := v.StopTime()
	for f := 0; f < frames; f++ {
		ft := t + float64(f)/sr
		if ft < v.StartTime {
			continue
		}
		if ft >= stopAt {
			if ft >= stopAt+v.grace {
				v.ended.Resolve(graph.EndNatural)
				return false
			}
			continue
		}
		freq := v.Frequency
		if v.vibrato != nil {
			freq *= math.Pow(2, v.vibrato.Sample(sr)/12)
		}
		s := oscillate(v.Waveform, v.phase)
		v.phase += freq / sr
		if v.phase >= 1 {
			v.phase -= math.Floor(v.phase)
		}
		y := float32(v.section.ProcessSample(s) * g[f])
		dst[f*2] += y
		dst[f*2+1] += y
	}
	return true
}

// reclaim drops render resources after the voice has ended.
func (v *Voice) reclaim() {
	v.section = nil
	v.vibrato = nil
	v.gainBuf = nil
}

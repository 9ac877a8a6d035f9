package synth

import (
	"errors"
	"math"

	"github.com/cbegin/sonicdeck-go/internal/filter"
)

// Ranges accepted by the setters. Values outside are clamped.
const (
	MinVoices     = 1
	MaxVoices     = 32
	MinFilterFreq = 10.0
	MaxFilterFreq = 22050.0
	MinFilterQ    = 0.0001
	MaxFilterQ    = 1000.0
	MaxAttack     = 2.0
	MaxDecay      = 2.0
	MaxRelease    = 5.0
	MaxLFORate    = 20.0

	DefaultVelocity = 127
)

var ErrUnknownParam = errors.New("unknown synth parameter")

// Envelope is an ADSR in seconds; Sustain is a level in [0, 1].
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// FilterSettings configure the per-voice biquad.
type FilterSettings struct {
	Type      filter.Type
	Frequency float64
	Q         float64
}

// LFOSettings configure vibrato. Amount is the depth in semitones.
type LFOSettings struct {
	Rate   float64
	Amount float64
}

// Params are the shared synthesis parameters applied to new voices.
type Params struct {
	MaxVoices int
	Waveform  Waveform
	Filter    FilterSettings
	Envelope  Envelope
	LFO       LFOSettings
	Volume    float64
}

func DefaultParams() Params {
	return Params{
		MaxVoices: 16,
		Waveform:  Sawtooth,
		Filter:    FilterSettings{Type: filter.Lowpass, Frequency: 2000, Q: 1},
		Envelope:  Envelope{Attack: 0.01, Decay: 0.1, Sustain: 0.7, Release: 0.3},
		LFO:       LFOSettings{Rate: 5, Amount: 0},
		Volume:    0.5,
	}
}

// sanitize clamps every numeric field and replaces invalid enums with defaults.
func (p Params) sanitize() Params {
	def := DefaultParams()
	p.MaxVoices = clampInt(p.MaxVoices, MinVoices, MaxVoices)
	if !p.Waveform.Valid() {
		p.Waveform = def.Waveform
	}
	if !p.Filter.Type.Valid() {
		p.Filter.Type = def.Filter.Type
	}
	p.Filter.Frequency = clamp(p.Filter.Frequency, MinFilterFreq, MaxFilterFreq)
	p.Filter.Q = clamp(p.Filter.Q, MinFilterQ, MaxFilterQ)
	p.Envelope = p.Envelope.sanitize()
	p.LFO.Rate = clamp(p.LFO.Rate, 0, MaxLFORate)
	p.LFO.Amount = clamp(p.LFO.Amount, 0, 1)
	p.Volume = clamp(p.Volume, 0, 1)
	return p
}

func (e Envelope) sanitize() Envelope {
	return Envelope{
		Attack:  clamp(e.Attack, 0, MaxAttack),
		Decay:   clamp(e.Decay, 0, MaxDecay),
		Sustain: clamp(e.Sustain, 0, 1),
		Release: clamp(e.Release, 0, MaxRelease),
	}
}

// ParamID names a numeric synth parameter for SetParam.
type ParamID int

const (
	ParamMaxVoices ParamID = iota
	ParamFilterFreq
	ParamFilterQ
	ParamAttack
	ParamDecay
	ParamSustain
	ParamRelease
	ParamLFORate
	ParamLFOAmount
	ParamVolume
)

// clamp maps NaN to lo.
func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

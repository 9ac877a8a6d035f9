// Package lfo provides a low-frequency oscillator for vibrato and other slow
// modulation.
package lfo

import "math"

// Shape selects the LFO waveform.
type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Saw
	Random
)

// LFO produces one modulation value per sample in [-depth, +depth].
// Each voice owns its own LFO so vibrato phase starts at the note-on.
type LFO struct {
	depth   float64
	rateHz  float64
	shape   Shape
	phase   float64 // [0, 1)
	randVal float64 // held value for sample-and-hold
	seed    uint32
}

// New returns an LFO with the given shape, rate and depth.
func New(shape Shape, rateHz, depth float64) *LFO {
	l := &LFO{seed: 0x9E3779B9}
	l.Set(depth, rateHz, shape)
	return l
}

// Set configures the LFO. Unknown shapes fall back to Sine.
func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	if shape < Sine || shape > Random {
		shape = Sine
	}
	l.depth = depth
	l.rateHz = rateHz
	l.shape = shape
}

// Rate returns the oscillation rate in Hz.
func (l *LFO) Rate() float64 { return l.rateHz }

// Depth returns the modulation depth.
func (l *LFO) Depth() float64 { return l.depth }

// Active reports whether the LFO produces any modulation.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Sample advances the LFO by one sample.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch l.shape {
	case Triangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case Square:
		if l.phase < 0.5 {
			v = 1
		} else {
			v = -1
		}
	case Saw:
		v = 1 - 2*l.phase
	case Random:
		v = l.randVal
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}

	prev := l.phase
	l.phase += l.rateHz / sampleRate
	for l.phase >= 1 {
		l.phase--
	}
	if l.shape == Random && l.phase < prev {
		// xorshift32, mapped to [-1, 1)
		l.seed ^= l.seed << 13
		l.seed ^= l.seed >> 17
		l.seed ^= l.seed << 5
		l.randVal = float64(l.seed)/float64(1<<31) - 1
	}
	return v * l.depth
}

// Reset zeros the phase and the held random value.
func (l *LFO) Reset() {
	l.phase = 0
	l.randVal = 0
}

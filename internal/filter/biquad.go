// Package filter implements second-order IIR sections using the RBJ audio EQ
// cookbook formulas, in Direct Form II Transposed.
package filter

import (
	"errors"
	"math"
	"strings"
)

// Type selects the filter response.
type Type int

const (
	Lowpass Type = iota
	Highpass
	Bandpass
	Notch
	Allpass
)

var ErrUnknownFilterType = errors.New("unknown filter type")

var typeNames = [...]string{"lowpass", "highpass", "bandpass", "notch", "allpass"}

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return "unknown"
}

// Valid reports whether t is one of the defined responses.
func (t Type) Valid() bool {
	return t >= Lowpass && t <= Allpass
}

// ParseType maps a filter name to its Type.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, ErrUnknownFilterType
}

// Coefficients of one section, normalized so that a0 = 1.
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Design computes coefficients for t at freq Hz with quality q.
// freq is kept below Nyquist and q above zero so the result is always stable.
func Design(t Type, freq, q, sampleRate float64) Coefficients {
	nyquist := sampleRate / 2
	if freq > nyquist*0.999 {
		freq = nyquist * 0.999
	}
	if freq < 1 {
		freq = 1
	}
	if q <= 0 || math.IsNaN(q) {
		q = 1e-4
	}
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)

	var b0, b1, b2 float64
	a0, a1, a2 := 1+alpha, -2*cw, 1-alpha
	switch t {
	case Highpass:
		b0, b1, b2 = (1+cw)/2, -(1 + cw), (1+cw)/2
	case Bandpass:
		b0, b1, b2 = alpha, 0, -alpha
	case Notch:
		b0, b1, b2 = 1, -2*cw, 1
	case Allpass:
		b0, b1, b2 = 1-alpha, -2*cw, 1+alpha
	default:
		b0, b1, b2 = (1-cw)/2, 1-cw, (1-cw)/2
	}
	return Coefficients{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}

// Section is a single biquad with its own state.
type Section struct {
	Coefficients
	d0, d1 float64
}

func NewSection(c Coefficients) *Section {
	return &Section{Coefficients: c}
}

// SetCoefficients swaps the response while keeping the state, so sweeps stay click free.
func (s *Section) SetCoefficients(c Coefficients) {
	s.Coefficients = c
}

func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y
	return y
}

func (s *Section) Reset() {
	s.d0, s.d1 = 0, 0
}

// Magnitude returns |H(f)| of the coefficients at freq Hz.
func (c Coefficients) Magnitude(freq, sampleRate float64) float64 {
	w := 2 * math.Pi * freq / sampleRate
	cos1, sin1 := math.Cos(w), math.Sin(w)
	cos2, sin2 := math.Cos(2*w), math.Sin(2*w)
	numRe := c.B0 + c.B1*cos1 + c.B2*cos2
	numIm := -(c.B1*sin1 + c.B2*sin2)
	denRe := 1 + c.A1*cos1 + c.A2*cos2
	denIm := -(c.A1*sin1 + c.A2*sin2)
	return math.Hypot(numRe, numIm) / math.Hypot(denRe, denIm)
}

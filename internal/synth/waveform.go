package synth

import (
	"errors"
	"math"
	"strings"
)

// Waveform is the oscillator shape of a voice.
type Waveform int

const (
	Sine Waveform = iota
	Square
	Sawtooth
	Triangle
)

var ErrUnknownWaveform = errors.New("unknown waveform")

var waveformNames = [...]string{"sine", "square", "sawtooth", "triangle"}

func (w Waveform) String() string {
	if w.Valid() {
		return waveformNames[w]
	}
	return "unknown"
}

func (w Waveform) Valid() bool {
	return w >= Sine && w <= Triangle
}

// ParseWaveform maps a waveform name to its Waveform.
func ParseWaveform(name string) (Waveform, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range waveformNames {
		if n == name {
			return Waveform(i), nil
		}
	}
	return 0, ErrUnknownWaveform
}

// oscillate returns the waveform value at phase in [0, 1).
func oscillate(w Waveform, phase float64) float64 {
	switch w {
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	case Sawtooth:
		return 2*phase - 1
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

// NoteFrequency converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func NoteFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

package analyzer

import (
	"errors"
	"math"
)

const (
	MinFFTSize = 256
	MaxFFTSize = 16384
)

var ErrDecibelRange = errors.New("minDecibels must be below maxDecibels")

// Config holds the analysis settings.
type Config struct {
	FFTSize     int
	Smoothing   float64 // time constant in [0, 1]
	MinDecibels float64
	MaxDecibels float64
}

func DefaultConfig() Config {
	return Config{FFTSize: 2048, Smoothing: 0.8, MinDecibels: -100, MaxDecibels: -30}
}

// NormalizeFFTSize rounds n to the nearest power of two within
// [MinFFTSize, MaxFFTSize]. Ties round up.
func NormalizeFFTSize(n int) int {
	if n <= MinFFTSize {
		return MinFFTSize
	}
	if n >= MaxFFTSize {
		return MaxFFTSize
	}
	lo := MinFFTSize
	for lo*2 <= n {
		lo *= 2
	}
	if n-lo < lo*2-n {
		return lo
	}
	return lo * 2
}

func (c Config) sanitize() Config {
	def := DefaultConfig()
	c.FFTSize = NormalizeFFTSize(c.FFTSize)
	c.Smoothing = clamp(c.Smoothing, 0, 1)
	if !(c.MinDecibels < c.MaxDecibels) || math.IsInf(c.MinDecibels, 0) || math.IsInf(c.MaxDecibels, 0) {
		c.MinDecibels, c.MaxDecibels = def.MinDecibels, def.MaxDecibels
	}
	return c
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

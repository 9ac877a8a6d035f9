package graph

import (
	"errors"
	"fmt"
)

// Buffer is decoded PCM audio held in memory, one slice per channel.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// NewBuffer validates that every channel has the same length.
func NewBuffer(sampleRate int, channels [][]float32) (*Buffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("buffer sample rate must be positive, got %d", sampleRate)
	}
	if len(channels) == 0 {
		return nil, errors.New("buffer needs at least one channel")
	}
	n := len(channels[0])
	for i, ch := range channels[1:] {
		if len(ch) != n {
			return nil, fmt.Errorf("channel %d has %d frames, want %d", i+1, len(ch), n)
		}
	}
	return &Buffer{SampleRate: sampleRate, Channels: channels}, nil
}

func (b *Buffer) NumberOfChannels() int { return len(b.Channels) }

// Length is the number of frames per channel.
func (b *Buffer) Length() int {
	if len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration is the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.SampleRate)
}

// frame returns the stereo pair at fractional position pos using linear
// interpolation. Mono buffers feed both sides.
func (b *Buffer) frame(pos float64) (float32, float32) {
	n := b.Length()
	i := int(pos)
	if i < 0 || i >= n {
		return 0, 0
	}
	j := i + 1
	if j >= n {
		j = i
	}
	frac := float32(pos - float64(i))
	left := b.Channels[0]
	l := left[i] + (left[j]-left[i])*frac
	if len(b.Channels) == 1 {
		return l, l
	}
	right := b.Channels[1]
	r := right[i] + (right[j]-right[i])*frac
	return l, r
}

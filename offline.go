package sonicdeck

import (
	"encoding/binary"
	"math"

	intaudio "github.com/cbegin/sonicdeck-go/internal/audio"
)

// RenderOffline advances the studio clock by seconds and returns the
// rendered master output, interleaved stereo. The studio must run on the
// headless backend.
func RenderOffline(s *Studio, seconds float64) ([]float32, error) {
	p := s.Player()
	if p == nil {
		return nil, ErrNotInitialized
	}
	return p.RenderOffline(seconds)
}

// RenderOffline is RenderOffline for a bare Player.
func (p *Player) RenderOffline(seconds float64) ([]float32, error) {
	if p.State() == StateUninitialized {
		return nil, ErrNotInitialized
	}
	dev, ok := p.Device().(*intaudio.HeadlessDevice)
	if !ok {
		return nil, ErrNotHeadless
	}
	if math.IsNaN(seconds) || seconds <= 0 {
		return nil, nil
	}
	return dev.PullSeconds(seconds), nil
}

const wavHeaderSize = 44

// EncodeWAVFloat32LE wraps interleaved float samples in a WAVE_FORMAT_IEEE_FLOAT file.
func EncodeWAVFloat32LE(samples []float32, sampleRate, channels int) []byte {
	le := binary.LittleEndian
	dataSize := len(samples) * 4
	out := make([]byte, wavHeaderSize, wavHeaderSize+dataSize)
	copy(out[0:], "RIFF")
	le.PutUint32(out[4:], uint32(wavHeaderSize-8+dataSize))
	copy(out[8:], "WAVEfmt ")
	le.PutUint32(out[16:], 16)
	le.PutUint16(out[20:], 3) // IEEE float
	le.PutUint16(out[22:], uint16(channels))
	le.PutUint32(out[24:], uint32(sampleRate))
	le.PutUint32(out[28:], uint32(sampleRate*channels*4))
	le.PutUint16(out[32:], uint16(channels*4))
	le.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	le.PutUint32(out[40:], uint32(dataSize))
	for _, s := range samples {
		out = le.AppendUint32(out, math.Float32bits(s))
	}
	return out
}

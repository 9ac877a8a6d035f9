// Package decode turns encoded audio bytes into planar graph buffers using
// the ebiten decoders. Every decoder yields stereo float32 at the source rate.
package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hajimehoshi/ebiten/v2/audio/mp3"
	"github.com/hajimehoshi/ebiten/v2/audio/vorbis"
	"github.com/hajimehoshi/ebiten/v2/audio/wav"

	"github.com/cbegin/sonicdeck-go/internal/graph"
)

// Format is the container detected from the leading bytes.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
	FormatVorbis
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	case FormatVorbis:
		return "vorbis"
	default:
		return "unknown"
	}
}

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmpty             = errors.New("no audio data")
)

// Error reports malformed or unsupported input. No buffer accompanies it.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Sniff inspects magic numbers.
func Sniff(b []byte) Format {
	switch {
	case len(b) >= 12 && string(b[0:4]) == "RIFF" && string(b[8:12]) == "WAVE":
		return FormatWAV
	case len(b) >= 4 && string(b[0:4]) == "OggS":
		return FormatVorbis
	case len(b) >= 3 && string(b[0:3]) == "ID3":
		return FormatMP3
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return FormatMP3
	}
	return FormatUnknown
}

type stream interface {
	io.Reader
	SampleRate() int
}

const chunkBytes = 16 * 1024

// Decode decodes src fully. It checks ctx between chunks.
func Decode(ctx context.Context, src []byte) (buf *graph.Buffer, err error) {
	format := Sniff(src)
	if len(src) == 0 {
		return nil, &Error{Format: format, Err: ErrEmpty}
	}
	if format == FormatUnknown {
		return nil, &Error{Format: format, Err: ErrUnsupportedFormat}
	}
	defer func() {
		if r := recover(); r != nil {
			buf, err = nil, &Error{Format: format, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()

	var s stream
	r := bytes.NewReader(src)
	switch format {
	case FormatWAV:
		s, err = wav.DecodeF32(r)
	case FormatMP3:
		s, err = mp3.DecodeF32(r)
	case FormatVorbis:
		s, err = vorbis.DecodeF32(r)
	}
	if err != nil {
		return nil, &Error{Format: format, Err: err}
	}

	var left, right []float32
	chunk := make([]byte, chunkBytes)
	var carry []byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, rerr := s.Read(chunk)
		data := chunk[:n]
		if len(carry) > 0 {
			data = append(carry, data...)
			carry = nil
		}
		frames := len(data) / 8
		for i := 0; i < frames; i++ {
			left = append(left, math.Float32frombits(binary.LittleEndian.Uint32(data[i*8:])))
			right = append(right, math.Float32frombits(binary.LittleEndian.Uint32(data[i*8+4:])))
		}
		if rest := data[frames*8:]; len(rest) > 0 {
			carry = append([]byte(nil), rest...)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, &Error{Format: format, Err: rerr}
		}
	}
	if len(left) == 0 {
		return nil, &Error{Format: format, Err: ErrEmpty}
	}
	buf, err = graph.NewBuffer(s.SampleRate(), [][]float32{left, right})
	if err != nil {
		return nil, &Error{Format: format, Err: err}
	}
	return buf, nil
}

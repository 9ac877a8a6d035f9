package decode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func pcm16WAV(rate int, frames [][2]int16) []byte {
	var data bytes.Buffer
	for _, f := range frames {
		_ = binary.Write(&data, binary.LittleEndian, f[0])
		_ = binary.Write(&data, binary.LittleEndian, f[1])
	}
	var b bytes.Buffer
	b.WriteString("RIFF")
	_ = binary.Write(&b, binary.LittleEndian, uint32(36+data.Len()))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	_ = binary.Write(&b, binary.LittleEndian, uint32(16))
	_ = binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&b, binary.LittleEndian, uint16(2))
	_ = binary.Write(&b, binary.LittleEndian, uint32(rate))
	_ = binary.Write(&b, binary.LittleEndian, uint32(rate*4))
	_ = binary.Write(&b, binary.LittleEndian, uint16(4))
	_ = binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	_ = binary.Write(&b, binary.LittleEndian, uint32(data.Len()))
	b.Write(data.Bytes())
	return b.Bytes()
}

func TestSniff(t *testing.T) {
	cases := []struct {
		in   []byte
		want Format
	}{
		{[]byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		{[]byte("OggS\x00\x02"), FormatVorbis},
		{[]byte("ID3\x04\x00"), FormatMP3},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{[]byte("hello world"), FormatUnknown},
		{nil, FormatUnknown},
	}
	for _, c := range cases {
		if got := Sniff(c.in); got != c.want {
			t.Errorf("Sniff(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(context.Background(), []byte("definitely not audio"))
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *Error, got %T %v", err, err)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	_, err := Decode(context.Background(), nil)
	if !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestDecodeTruncatedWAV(t *testing.T) {
	buf, err := Decode(context.Background(), []byte("RIFF\x24\x00\x00\x00WAVEfm"))
	if buf != nil {
		t.Fatal("no buffer should be returned on failure")
	}
	var derr *Error
	if !errors.As(err, &derr) || derr.Format != FormatWAV {
		t.Fatalf("expected wav *Error, got %v", err)
	}
}

func TestDecodeWAV(t *testing.T) {
	frames := make([][2]int16, 1000)
	for i := range frames {
		frames[i] = [2]int16{16384, -16384}
	}
	buf, err := Decode(context.Background(), pcm16WAV(22050, frames))
	if err != nil {
		t.Fatal(err)
	}
	if buf.SampleRate != 22050 {
		t.Fatalf("sample rate = %d", buf.SampleRate)
	}
	if buf.NumberOfChannels() != 2 || buf.Length() != len(frames) {
		t.Fatalf("channels=%d length=%d", buf.NumberOfChannels(), buf.Length())
	}
	if l, r := buf.Channels[0][10], buf.Channels[1][10]; math.Abs(float64(l)-0.5) > 1e-3 || math.Abs(float64(r)+0.5) > 1e-3 {
		t.Fatalf("frame 10 = (%v, %v), want (0.5, -0.5)", l, r)
	}
}

func TestDecodeHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Decode(ctx, pcm16WAV(22050, make([][2]int16, 100)))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

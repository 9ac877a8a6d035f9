package graph

import "testing"

func rampBuffer(t *testing.T, rate, n int) *Buffer {
	t.Helper()
	ch := make([]float32, n)
	for i := range ch {
		ch[i] = float32(i + 1)
	}
	b, err := NewBuffer(rate, [][]float32{ch})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestNewBufferValidates(t *testing.T) {
	if _, err := NewBuffer(0, [][]float32{{0}}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if _, err := NewBuffer(44100, nil); err == nil {
		t.Fatal("expected error for no channels")
	}
	if _, err := NewBuffer(44100, [][]float32{{0, 1}, {0}}); err == nil {
		t.Fatal("expected error for ragged channels")
	}
	b, err := NewBuffer(4, [][]float32{{0, 0, 0, 0, 0, 0}, {0, 0, 0, 0, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if b.NumberOfChannels() != 2 || b.Length() != 6 || b.Duration() != 1.5 {
		t.Fatalf("got channels=%d length=%d duration=%v", b.NumberOfChannels(), b.Length(), b.Duration())
	}
}

func TestBufferSourcePlaysToEnd(t *testing.T) {
	src := NewBufferSource(rampBuffer(t, 100, 4), 100, SourceOptions{})
	dst := make([]float32, 2*6)
	if src.Process(dst, 0) {
		t.Fatal("source should finish within the block")
	}
	want := []float32{1, 1, 2, 2, 3, 3, 4, 4, 0, 0, 0, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
	if src.Ended().Reason() != EndNatural {
		t.Fatalf("reason = %v, want EndNatural", src.Ended().Reason())
	}
}

func TestBufferSourceOffsetAndWhen(t *testing.T) {
	src := NewBufferSource(rampBuffer(t, 100, 10), 100, SourceOptions{When: 0.02, Offset: 0.05})
	dst := make([]float32, 2*4)
	src.Process(dst, 0)
	want := []float32{0, 0, 0, 0, 6, 6, 7, 7}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst = %v, want %v", dst, want)
		}
	}
}

func TestBufferSourceLoops(t *testing.T) {
	loops := 0
	src := NewBufferSource(rampBuffer(t, 100, 3), 100, SourceOptions{
		Loop:   true,
		OnLoop: func() { loops++ },
	})
	dst := make([]float32, 2*7)
	if !src.Process(dst, 0) {
		t.Fatal("looping source should keep going")
	}
	if loops != 2 {
		t.Fatalf("loops = %d, want 2", loops)
	}
	if dst[2*6] != 1 {
		t.Fatalf("frame 6 = %v, want 1", dst[2*6])
	}
}

func TestBufferSourceDuration(t *testing.T) {
	src := NewBufferSource(rampBuffer(t, 100, 10), 100, SourceOptions{Duration: 0.03})
	dst := make([]float32, 2*5)
	if src.Process(dst, 0) {
		t.Fatal("source should end after its duration")
	}
	if dst[2*2] != 3 || dst[2*3] != 0 {
		t.Fatalf("dst = %v", dst)
	}
}

func TestBufferSourceStop(t *testing.T) {
	src := NewBufferSource(rampBuffer(t, 100, 10), 100, SourceOptions{})
	src.Stop()
	src.Stop()
	if src.Process(make([]float32, 4), 0) {
		t.Fatal("stopped source should detach")
	}
	if src.Ended().Reason() != EndStopped {
		t.Fatalf("reason = %v, want EndStopped", src.Ended().Reason())
	}
}

func TestBufferSourceResamples(t *testing.T) {
	src := NewBufferSource(rampBuffer(t, 50, 4), 100, SourceOptions{})
	dst := make([]float32, 2*4)
	src.Process(dst, 0)
	want := []float32{1, 1.5, 2, 2.5}
	for i, w := range want {
		if dst[i*2] != w {
			t.Fatalf("frame %d = %v, want %v", i, dst[i*2], w)
		}
	}
}

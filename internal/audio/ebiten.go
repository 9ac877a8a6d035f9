package audio

import (
	"context"
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows a single audio context per process.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenDevice plays through ebiten's audio context.
type EbitenDevice struct {
	mu     sync.Mutex
	player *ebitaudio.Player
	reader *StreamReader
}

func (d *EbitenDevice) Open(ctx context.Context, cfg Config, src SampleSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return fmt.Errorf("ebiten device already open")
	}
	actx, err := sharedAudioContext(cfg.SampleRate)
	if err != nil {
		return err
	}
	if err := waitReady(ctx, actx.IsReady); err != nil {
		return fmt.Errorf("wait for audio context: %w", err)
	}
	reader := NewStreamReader(src)
	pl, err := actx.NewPlayerF32(reader)
	if err != nil {
		return fmt.Errorf("create ebiten player: %w", err)
	}
	if cfg.Latency > 0 {
		pl.SetBufferSize(cfg.Latency)
	}
	pl.Play()
	d.player = pl
	d.reader = reader
	return nil
}

func (d *EbitenDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	if cerr := d.reader.Close(); err == nil {
		err = cerr
	}
	return err
}

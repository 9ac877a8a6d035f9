package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce       sync.Once
	otoContext    *oto.Context
	otoReady      chan struct{}
	otoErr        error
	otoSampleRate int
)

func sharedOtoContext(cfg Config) (*oto.Context, chan struct{}, error) {
	otoOnce.Do(func() {
		otoSampleRate = cfg.SampleRate
		otoContext, otoReady, otoErr = oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: 2,
			Format:       oto.FormatFloat32LE,
			BufferSize:   cfg.Latency,
		})
	})
	if otoErr != nil {
		return nil, nil, otoErr
	}
	if otoSampleRate != cfg.SampleRate {
		return nil, nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoSampleRate, cfg.SampleRate)
	}
	return otoContext, otoReady, nil
}

// OtoDevice writes straight to an oto context, bypassing ebiten.
type OtoDevice struct {
	mu     sync.Mutex
	player *oto.Player
}

func (d *OtoDevice) Open(ctx context.Context, cfg Config, src SampleSource) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		return fmt.Errorf("oto device already open")
	}
	octx, ready, err := sharedOtoContext(cfg)
	if err != nil {
		return err
	}
	select {
	case <-ready:
	case <-ctx.Done():
		return fmt.Errorf("wait for oto context: %w", ctx.Err())
	}
	d.player = octx.NewPlayer(NewStreamReader(src))
	d.player.Play()
	return nil
}

func (d *OtoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	d.player.Pause()
	err := d.player.Close()
	d.player = nil
	return err
}

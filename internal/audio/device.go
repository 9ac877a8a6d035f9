// Package audio connects the graph renderer to an output device.
package audio

import (
	"context"
	"time"
)

// SampleSource fills dst with interleaved stereo float32 frames.
type SampleSource interface {
	Process(dst []float32)
}

// Config describes the stream a Device should open.
type Config struct {
	SampleRate int
	Latency    time.Duration
}

// Device pulls frames from a SampleSource and sends them to an output.
// Open blocks until the output is ready or ctx is done.
type Device interface {
	Open(ctx context.Context, cfg Config, src SampleSource) error
	Close() error
}

// Backend names a Device implementation.
type Backend string

const (
	BackendEbiten   Backend = "ebiten"
	BackendOto      Backend = "oto"
	BackendHeadless Backend = "headless"
)

// NewDevice returns the device for backend; unknown names fall back to ebiten.
func NewDevice(backend Backend) Device {
	switch backend {
	case BackendOto:
		return &OtoDevice{}
	case BackendHeadless:
		return &HeadlessDevice{}
	default:
		return &EbitenDevice{}
	}
}

// waitReady polls ready until it reports true or ctx is done.
func waitReady(ctx context.Context, ready func() bool) error {
	if ready() {
		return nil
	}
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ready() {
				return nil
			}
		}
	}
}

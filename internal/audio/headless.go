package audio

import (
	"context"
	"errors"
	"math"
	"sync"
)

// HeadlessDevice has no output. Frames only move when Pull is called, which
// makes it the device for tests and offline rendering.
type HeadlessDevice struct {
	mu  sync.Mutex
	src SampleSource
	cfg Config
	// FailOpen makes Open return this error, simulating a missing output.
	FailOpen error
}

func (d *HeadlessDevice) Open(ctx context.Context, cfg Config, src SampleSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailOpen != nil {
		return d.FailOpen
	}
	if d.src != nil {
		return errors.New("headless device already open")
	}
	d.src = src
	d.cfg = cfg
	return nil
}

// Pull renders frames stereo frames and returns them interleaved.
func (d *HeadlessDevice) Pull(frames int) []float32 {
	out := make([]float32, frames*2)
	d.mu.Lock()
	src := d.src
	d.mu.Unlock()
	if src != nil {
		src.Process(out)
	}
	return out
}

// PullSeconds renders roughly seconds of audio in blocks of 128 frames.
func (d *HeadlessDevice) PullSeconds(seconds float64) []float32 {
	d.mu.Lock()
	rate := d.cfg.SampleRate
	d.mu.Unlock()
	total := int(math.Round(seconds * float64(rate)))
	out := make([]float32, 0, total*2)
	for total > 0 {
		n := min(total, 128)
		out = append(out, d.Pull(n)...)
		total -= n
	}
	return out
}

func (d *HeadlessDevice) Close() error {
	d.mu.Lock()
	d.src = nil
	d.mu.Unlock()
	return nil
}

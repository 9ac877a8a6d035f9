// Package analyzer taps the master bus and derives visual analysis data:
// byte spectrum and waveform arrays, peak and RMS levels, a tempo heuristic
// and a pitch estimate.
package analyzer

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/sonicdeck-go/internal/graph"
)

// Frame is one analysis result. Spectrum values are in [0, 1], Waveform
// values in [-1, 1]; both hold FFTSize/2 entries.
type Frame struct {
	Spectrum []float64
	Waveform []float64
	Peak     float64
	RMS      float64
	BPM      *int
	Pitch    *Pitch
}

func (f Frame) clone() Frame {
	f.Spectrum = append([]float64(nil), f.Spectrum...)
	f.Waveform = append([]float64(nil), f.Waveform...)
	if f.BPM != nil {
		b := *f.BPM
		f.BPM = &b
	}
	if f.Pitch != nil {
		p := *f.Pitch
		f.Pitch = &p
	}
	return f
}

// Analyzer owns a mono ring of the most recent output samples and the FFT
// state used to turn it into frames.
type Analyzer struct {
	sampleRate int
	log        *logrus.Entry

	mu    sync.Mutex // ring, config, latest frame
	cfg   Config
	ring  []float32
	write int
	frame Frame

	tickMu   sync.Mutex // FFT scratch
	plan     *algofft.Plan[complex128]
	window   []float64
	snapshot []float64
	windowed []float64
	in, out  []complex128
	re, im   []float64
	mag      []float64
	smoothed []float64
	freq     []byte
	wave     []byte

	runMu   sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates an analyzer for audio at sampleRate.
func New(sampleRate int, cfg Config, log *logrus.Entry) (*Analyzer, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a := &Analyzer{
		sampleRate: sampleRate,
		log:        log.WithField("component", "analyzer"),
		cfg:        cfg.sanitize(),
	}
	if err := a.allocate(a.cfg.FFTSize); err != nil {
		return nil, err
	}
	return a, nil
}

// allocate sizes every buffer for n. It fails before replacing anything.
// Callers hold tickMu and mu, or own a.
func (a *Analyzer) allocate(n int) error {
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return fmt.Errorf("analyzer fft plan: %w", err)
	}
	bins := n / 2
	a.plan = plan
	a.window = blackman(n)
	a.snapshot = make([]float64, n)
	a.windowed = make([]float64, n)
	a.in = make([]complex128, n)
	a.out = make([]complex128, n)
	a.re = make([]float64, bins)
	a.im = make([]float64, bins)
	a.mag = make([]float64, bins)
	a.smoothed = make([]float64, bins)
	a.freq = make([]byte, bins)
	a.wave = make([]byte, bins)
	a.ring = make([]float32, n)
	a.write = 0
	a.frame = Frame{Spectrum: make([]float64, bins), Waveform: make([]float64, bins)}
	return nil
}

func blackman(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return w
}

// Attach taps the master output of c. Call the returned func to detach.
func (a *Analyzer) Attach(c *graph.Context) (detach func()) {
	return c.AddTap(a.Write)
}

// Write appends interleaved stereo frames, mixed to mono.
func (a *Analyzer) Write(block []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.ring)
	for i := 0; i+1 < len(block); i += 2 {
		a.ring[a.write] = (block[i] + block[i+1]) * 0.5
		if a.write++; a.write == n {
			a.write = 0
		}
	}
}

// Config returns the current settings.
func (a *Analyzer) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// SetFFTSize normalizes n, reallocates the buffers and returns the size used.
func (a *Analyzer) SetFFTSize(n int) int {
	n = NormalizeFFTSize(n)
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	a.mu.Lock()
	defer a.mu.Unlock()
	if n == a.cfg.FFTSize {
		return n
	}
	if err := a.allocate(n); err != nil {
		// allocate fails before touching any buffer, so the old size stays intact.
		a.log.WithError(err).Warn("fft size rejected")
		return a.cfg.FFTSize
	}
	a.cfg.FFTSize = n
	return n
}

func (a *Analyzer) SetSmoothing(v float64) {
	a.mu.Lock()
	a.cfg.Smoothing = clamp(v, 0, 1)
	a.mu.Unlock()
}

// SetDecibels sets the dB range mapped onto spectrum bytes.
func (a *Analyzer) SetDecibels(lo, hi float64) error {
	if !(lo < hi) {
		a.log.WithFields(logrus.Fields{"min": lo, "max": hi}).Warn("rejected decibel range")
		return ErrDecibelRange
	}
	a.mu.Lock()
	a.cfg.MinDecibels, a.cfg.MaxDecibels = lo, hi
	a.mu.Unlock()
	return nil
}

// ByteFrequencyData fills dst with the smoothed spectrum mapped through the
// decibel range onto 0..255. It returns the number of bins written.
func (a *Analyzer) ByteFrequencyData(dst []byte) int {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	cfg := a.capture()
	a.spectrumBytes(cfg)
	return copy(dst, a.freq)
}

// ByteTimeDomainData fills dst with the latest samples as 128*(1+x).
func (a *Analyzer) ByteTimeDomainData(dst []byte) int {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()
	a.capture()
	a.waveformBytes()
	return copy(dst, a.wave)
}

// capture copies the ring, oldest sample first, and returns the config it
// was taken under.
func (a *Analyzer) capture() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.snapshot[i] = float64(a.ring[(a.write+i)%n])
	}
	return a.cfg
}

func (a *Analyzer) spectrumBytes(cfg Config) {
	n := len(a.snapshot)
	bins := n / 2
	copy(a.windowed, a.snapshot)
	vecmath.MulBlockInPlace(a.windowed, a.window)
	for i, v := range a.windowed {
		a.in[i] = complex(v, 0)
	}
	if err := a.plan.Forward(a.out, a.in); err != nil {
		a.log.WithError(err).Warn("fft failed")
		return
	}
	for k := 0; k < bins; k++ {
		a.re[k], a.im[k] = real(a.out[k]), imag(a.out[k])
	}
	vecmath.Magnitude(a.mag, a.re, a.im)
	vecmath.ScaleBlock(a.mag, a.mag, 1/float64(n))

	tau := cfg.Smoothing
	span := cfg.MaxDecibels - cfg.MinDecibels
	for k := 0; k < bins; k++ {
		a.smoothed[k] = tau*a.smoothed[k] + (1-tau)*a.mag[k]
		db := 20 * math.Log10(a.smoothed[k])
		scaled := 255 * (db - cfg.MinDecibels) / span
		switch {
		case math.IsNaN(scaled) || scaled <= 0:
			a.freq[k] = 0
		case scaled >= 255:
			a.freq[k] = 255
		default:
			a.freq[k] = byte(scaled)
		}
	}
}

func (a *Analyzer) waveformBytes() {
	n := len(a.snapshot)
	recent := a.snapshot[n-len(a.wave):]
	for i, x := range recent {
		v := 128 * (1 + x)
		switch {
		case v <= 0:
			a.wave[i] = 0
		case v >= 255:
			a.wave[i] = 255
		default:
			a.wave[i] = byte(v)
		}
	}
}

// Tick computes a new frame from the latest samples and stores it.
func (a *Analyzer) Tick() Frame {
	a.tickMu.Lock()
	defer a.tickMu.Unlock()

	cfg := a.capture()
	a.spectrumBytes(cfg)
	a.waveformBytes()

	bins := len(a.freq)
	f := Frame{
		Spectrum: make([]float64, bins),
		Waveform: make([]float64, bins),
	}
	for i := 0; i < bins; i++ {
		f.Spectrum[i] = float64(a.freq[i]) / 255
		f.Waveform[i] = (float64(a.wave[i]) - 128) / 128
	}

	sq := make([]float64, bins)
	vecmath.MulBlock(sq, f.Waveform, f.Waveform)
	var sum float64
	for i, w := range f.Waveform {
		f.Peak = math.Max(f.Peak, math.Abs(w))
		sum += sq[i]
	}
	if bins > 0 {
		f.RMS = math.Sqrt(sum / float64(bins))
	}

	a.mu.Lock()
	f.BPM = estimateBPM(f.Spectrum, a.sampleRate, cfg.FFTSize, a.frame.BPM)
	f.Pitch = estimatePitch(f.Spectrum, a.sampleRate, cfg.FFTSize)
	a.frame = f
	a.mu.Unlock()
	return f.clone()
}

// Start runs Tick every interval until Stop or ctx is done. A running loop
// is left alone.
func (a *Analyzer) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second / 60
	}
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})
	a.cancel, a.stopped = cancel, stopped
	a.log.WithField("interval", interval).Debug("analysis started")

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				a.Tick()
			}
		}
	}()
}

// Stop ends the tick loop and waits for it to exit.
func (a *Analyzer) Stop() {
	a.runMu.Lock()
	cancel, stopped := a.cancel, a.stopped
	a.cancel, a.stopped = nil, nil
	a.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	a.log.Debug("analysis stopped")
}

// IsAnalyzing reports whether the tick loop is running.
func (a *Analyzer) IsAnalyzing() bool {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.stopped == nil {
		return false
	}
	select {
	case <-a.stopped:
		return false
	default:
		return true
	}
}

// Frame returns a copy of the latest frame.
func (a *Analyzer) Frame() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame.clone()
}

func (a *Analyzer) Spectrum() []float64 { return a.Frame().Spectrum }

func (a *Analyzer) Waveform() []float64 { return a.Frame().Waveform }

func (a *Analyzer) PeakLevel() float64 { return a.Frame().Peak }

func (a *Analyzer) RMSLevel() float64 { return a.Frame().RMS }

// BPM is nil until the heuristic has produced an estimate.
func (a *Analyzer) BPM() *int { return a.Frame().BPM }

// Pitch is nil when the strongest bin is outside the audible range.
func (a *Analyzer) Pitch() *Pitch { return a.Frame().Pitch }

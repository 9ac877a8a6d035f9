package sonicdeck

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/sonicdeck-go/internal/analyzer"
	"github.com/cbegin/sonicdeck-go/internal/midibridge"
	"github.com/cbegin/sonicdeck-go/internal/synth"
)

// StudioConfig configures every engine a Studio builds.
type StudioConfig struct {
	SampleRate   float64
	Latency      LatencyHint
	MasterVolume float64
	Synth        synth.Params
	Analyzer     analyzer.Config
	// MIDIChannel filters bridge input to one channel; -1 accepts all.
	MIDIChannel int
}

func DefaultStudioConfig() StudioConfig {
	return StudioConfig{
		SampleRate:   DefaultSampleRate,
		Latency:      LatencyInteractive,
		MasterVolume: 1,
		Synth:        synth.DefaultParams(),
		Analyzer:     analyzer.DefaultConfig(),
		MIDIChannel:  -1,
	}
}

type StudioOption func(*Studio)

// WithPlayerOptions passes options through to the Player.
func WithPlayerOptions(opts ...PlayerOption) StudioOption {
	return func(s *Studio) {
		s.playerOpts = append(s.playerOpts, opts...)
	}
}

func WithStudioLogger(log *logrus.Entry) StudioOption {
	return func(s *Studio) {
		if log != nil {
			s.log = log
		}
	}
}

// Studio wires a Player, Synth and Analyzer to one graph context.
type Studio struct {
	log        *logrus.Entry
	playerOpts []PlayerOption

	mu       sync.Mutex
	player   *Player
	synth    *synth.Synth
	analyzer *analyzer.Analyzer
	bridge   *midibridge.Bridge
	detach   func()
}

func NewStudio(opts ...StudioOption) *Studio {
	s := &Studio{log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize opens the output and builds the engines. On failure the
// studio holds nothing and may be initialized again.
func (s *Studio) Initialize(ctx context.Context, cfg StudioConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.closeLocked()
	}

	popts := append([]PlayerOption{WithLogger(s.log)}, s.playerOpts...)
	p := NewPlayer(popts...)
	if err := p.Initialize(ctx, cfg.SampleRate, cfg.Latency, cfg.MasterVolume); err != nil {
		return err
	}
	an, err := analyzer.New(p.SampleRate(), cfg.Analyzer, s.log)
	if err != nil {
		_ = p.Close()
		return err
	}
	g := p.Graph()
	syn := synth.New(g, cfg.Synth, s.log)

	s.player = p
	s.synth = syn
	s.analyzer = an
	s.detach = an.Attach(g)
	s.bridge = midibridge.New(syn, midibridge.WithChannel(cfg.MIDIChannel), midibridge.WithLogger(s.log))
	s.log.WithFields(logrus.Fields{
		"component":   "studio",
		"sample_rate": p.SampleRate(),
		"voices":      syn.Params().MaxVoices,
		"fft_size":    an.Config().FFTSize,
	}).Info("studio ready")
	return nil
}

// Player is nil until Initialize succeeds.
func (s *Studio) Player() *Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player
}

func (s *Studio) Synth() *synth.Synth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synth
}

func (s *Studio) Analyzer() *analyzer.Analyzer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyzer
}

// MIDI is the bridge feeding the synth.
func (s *Studio) MIDI() *midibridge.Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge
}

// Close silences the synth, stops analysis and playback, and closes the device.
func (s *Studio) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Studio) closeLocked() error {
	if s.player == nil {
		return nil
	}
	s.synth.Close()
	s.analyzer.Stop()
	if s.detach != nil {
		s.detach()
	}
	err := s.player.Close()
	s.player, s.synth, s.analyzer, s.bridge, s.detach = nil, nil, nil, nil, nil
	return err
}

package sonicdeck

import (
	"errors"
	"fmt"

	"github.com/cbegin/sonicdeck-go/internal/analyzer"
	"github.com/cbegin/sonicdeck-go/internal/decode"
	"github.com/cbegin/sonicdeck-go/internal/effects"
	"github.com/cbegin/sonicdeck-go/internal/filter"
	"github.com/cbegin/sonicdeck-go/internal/synth"
)

var (
	// ErrNoSource is returned by Play when no buffer was given or loaded.
	ErrNoSource = errors.New("no audio buffer to play")
	// ErrNotInitialized is returned by transport calls before Initialize.
	ErrNotInitialized = errors.New("player not initialized")
	// ErrNotHeadless is returned by RenderOffline for players on a real device.
	ErrNotHeadless = errors.New("offline rendering needs the headless backend")
)

// Enum rejections from the engine packages.
var (
	ErrUnsupportedFormat = decode.ErrUnsupportedFormat
	ErrUnknownWaveform   = synth.ErrUnknownWaveform
	ErrUnknownFilterType = filter.ErrUnknownFilterType
	ErrUnknownParam      = synth.ErrUnknownParam
	ErrUnknownEffect     = effects.ErrUnknownKind
	ErrDecibelRange      = analyzer.ErrDecibelRange
)

// InitializationError reports that the output device could not be opened.
// The player stays uninitialized.
type InitializationError struct {
	SampleRate int
	Err        error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize audio output at %d Hz: %v", e.SampleRate, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// DecodeError reports malformed or unsupported audio bytes.
type DecodeError = decode.Error

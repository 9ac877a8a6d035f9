// Package effects holds the stereo processors and the ordered chain of
// effect units that a playback path is built from.
package effects

import (
	"errors"
	"math"
	"strings"
)

// Effector processes one stereo frame.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Kind identifies the processor behind a Unit.
type Kind int

const (
	KindFilter Kind = iota
	KindDelay
	KindReverb
	KindChorus
	KindDistortion
	KindEQ
	KindCompressor
)

var (
	ErrUnknownKind  = errors.New("unknown effect kind")
	ErrUnknownParam = errors.New("parameter not supported by effect")
	ErrNilSettings  = errors.New("effect settings are nil")
)

var kindNames = [...]string{"filter", "delay", "reverb", "chorus", "distortion", "eq", "compressor"}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return "unknown"
}

func (k Kind) Valid() bool { return k >= KindFilter && k <= KindCompressor }

// ParseKind maps an effect name to its Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, ErrUnknownKind
}

// ParamID names a numeric effect parameter. Each kind accepts a subset.
type ParamID int

const (
	ParamMix ParamID = iota
	ParamFrequency
	ParamQ
	ParamTime
	ParamFeedback
	ParamCross
	ParamRoomSize
	ParamDecay
	ParamDepth
	ParamRate
	ParamDrive
	ParamOutput
	ParamTone
	ParamLow
	ParamMid
	ParamHigh
	ParamLowFreq
	ParamHighFreq
	ParamThreshold
	ParamRatio
	ParamAttack
	ParamRelease
	ParamMakeup
)

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// clamp64 maps NaN to lo.
func clamp64(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dbToGain(db float64) float64 { return math.Pow(10, db/20) }

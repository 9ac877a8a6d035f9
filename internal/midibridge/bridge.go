// Package midibridge routes MIDI channel messages to a synthesizer.
package midibridge

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/sonicdeck-go/internal/graph"
	"github.com/cbegin/sonicdeck-go/internal/synth"
)

// Controller numbers that silence every voice.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

// Synth is the subset of *synth.Synth the bridge drives.
type Synth interface {
	PlayNote(note, velocity int, duration float64) *synth.Voice
	StopNote(note int) *graph.Completion
	StopAll()
}

// Bridge turns note-on, note-off and all-notes-off messages into synth calls.
type Bridge struct {
	synth   Synth
	channel int // -1 accepts every channel
	log     *logrus.Entry
}

type Option func(*Bridge)

// WithChannel only accepts messages on ch (0-15).
func WithChannel(ch int) Option {
	return func(b *Bridge) { b.channel = ch }
}

func WithLogger(log *logrus.Entry) Option {
	return func(b *Bridge) { b.log = log }
}

func New(s Synth, opts ...Option) *Bridge {
	b := &Bridge{synth: s, channel: -1, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.WithField("component", "midi")
	return b
}

// Handle has the signature midi.ListenTo expects.
func (b *Bridge) Handle(msg midi.Message, timestampms int32) {
	var ch, key, vel, cc uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if b.accepts(ch) {
			b.synth.PlayNote(int(key), int(vel), 0)
		}
	case msg.GetNoteEnd(&ch, &key):
		if b.accepts(ch) {
			b.synth.StopNote(int(key))
		}
	case msg.GetControlChange(&ch, &cc, &vel):
		if b.accepts(ch) && (cc == ccAllSoundOff || cc == ccAllNotesOff) {
			b.synth.StopAll()
		}
	default:
		b.log.WithFields(logrus.Fields{"msg": msg.String(), "ts": timestampms}).Debug("unhandled midi message")
	}
}

func (b *Bridge) accepts(ch uint8) bool {
	return b.channel < 0 || int(ch) == b.channel
}

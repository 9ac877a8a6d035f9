package midibridge

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/sonicdeck-go/internal/graph"
	"github.com/cbegin/sonicdeck-go/internal/synth"
)

type call struct {
	op       string
	note     int
	velocity int
}

type fakeSynth struct {
	calls []call
}

func (f *fakeSynth) PlayNote(note, velocity int, _ float64) *synth.Voice {
	f.calls = append(f.calls, call{"play", note, velocity})
	return nil
}

func (f *fakeSynth) StopNote(note int) *graph.Completion {
	f.calls = append(f.calls, call{op: "stop", note: note})
	return nil
}

func (f *fakeSynth) StopAll() {
	f.calls = append(f.calls, call{op: "all"})
}

func TestHandleMapsMessages(t *testing.T) {
	fs := &fakeSynth{}
	b := New(fs)

	b.Handle(midi.NoteOn(0, 60, 100), 0)
	b.Handle(midi.NoteOn(0, 60, 0), 1)
	b.Handle(midi.NoteOn(1, 64, 90), 2)
	b.Handle(midi.NoteOff(1, 64), 3)
	b.Handle(midi.ControlChange(0, 123, 0), 4)
	b.Handle(midi.ControlChange(0, 120, 0), 5)
	b.Handle(midi.ControlChange(0, 7, 100), 6)
	b.Handle(midi.Pitchbend(0, 100), 7)

	want := []call{
		{"play", 60, 100},
		{op: "stop", note: 60},
		{"play", 64, 90},
		{op: "stop", note: 64},
		{op: "all"},
		{op: "all"},
	}
	if len(fs.calls) != len(want) {
		t.Fatalf("calls = %+v, want %+v", fs.calls, want)
	}
	for i := range want {
		if fs.calls[i] != want[i] {
			t.Errorf("call %d = %+v, want %+v", i, fs.calls[i], want[i])
		}
	}
}

func TestChannelFilter(t *testing.T) {
	fs := &fakeSynth{}
	b := New(fs, WithChannel(2))

	b.Handle(midi.NoteOn(0, 60, 100), 0)
	b.Handle(midi.NoteOn(2, 62, 100), 0)
	b.Handle(midi.ControlChange(5, 123, 0), 0)

	if len(fs.calls) != 1 || fs.calls[0].note != 62 {
		t.Fatalf("calls = %+v, want only note 62", fs.calls)
	}
}

func TestDrivesRealSynth(t *testing.T) {
	ctx := graph.NewContext(44100, 1)
	s := synth.New(ctx, synth.DefaultParams(), nil)
	b := New(s)

	b.Handle(midi.NoteOn(0, 69, 127), 0)
	if v := s.Voice(69); v == nil || v.Velocity != 127 {
		t.Fatalf("voice = %+v", v)
	}
	b.Handle(midi.NoteOff(0, 69), 0)
	if s.Voice(69) != nil {
		t.Fatal("note-off should release the voice")
	}
}

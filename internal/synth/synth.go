// Package synth is a polyphonic subtractive synthesizer. Voices are scheduled
// against the graph clock and mixed into the synth's own gain bus, which is
// connected to the graph master.
package synth

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/sonicdeck-go/internal/filter"
	"github.com/cbegin/sonicdeck-go/internal/graph"
)

// ReleaseGrace is the extra audio time a released voice renders silence
// before its resources are reclaimed.
const ReleaseGrace = 0.05

// Synth owns the voice pool and the shared parameters.
type Synth struct {
	ctx *graph.Context
	log *logrus.Entry

	mu     sync.Mutex
	params Params
	order  []*Voice // insertion order; the oldest scan walks this
	voices map[int]*Voice

	volume *graph.Param

	busMu    sync.Mutex
	sounding []*Voice
	mixBuf   []float32
	gainBuf  []float64
}

// New creates a synth and connects its gain bus to ctx. A nil log uses the
// standard logger.
func New(ctx *graph.Context, p Params, log *logrus.Entry) *Synth {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p = p.sanitize()
	s := &Synth{
		ctx:    ctx,
		log:    log.WithField("component", "synth"),
		params: p,
		voices: make(map[int]*Voice),
		volume: graph.NewParam(p.Volume),
	}
	ctx.Connect(s)
	return s
}

// Params returns a copy of the current shared parameters.
func (s *Synth) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// ActiveVoices is the pool size.
func (s *Synth) ActiveVoices() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Voice returns the pooled voice for note, or nil.
func (s *Synth) Voice(note int) *Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voices[note]
}

// PlayNote starts a note at the current audio time. At capacity the oldest
// voice is released and evicted first; a voice already sounding the same note
// is released too. duration > 0 schedules an automatic note-off.
func (s *Synth) PlayNote(note, velocity int, duration float64) *Voice {
	note = clampInt(note, 0, 127)
	velocity = clampInt(velocity, 0, 127)

	s.mu.Lock()
	now := s.ctx.CurrentTime()
	if old := s.voices[note]; old != nil {
		s.removeLocked(old)
		s.releaseLocked(old, now)
	}
	for len(s.order) >= s.params.MaxVoices {
		s.evictOldestLocked(now)
	}
	v := newVoice(note, velocity, now, s.params, s.ctx.SampleRate(), ReleaseGrace)
	s.order = append(s.order, v)
	s.voices[note] = v
	s.mu.Unlock()

	s.busMu.Lock()
	s.sounding = append(s.sounding, v)
	s.busMu.Unlock()

	s.log.WithFields(logrus.Fields{"note": note, "velocity": velocity, "t": now}).Debug("note on")

	if duration > 0 {
		s.ctx.After(now + duration).Then(func(reason graph.EndReason) {
			if reason == graph.EndStopped {
				return
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.voices[v.Note] == v {
				s.removeLocked(v)
				s.releaseLocked(v, s.ctx.CurrentTime())
			}
		})
	}
	return v
}

// StopNote releases the voice sounding note. The returned completion resolves
// once the release tail has been rendered; it is nil when note is not sounding.
func (s *Synth) StopNote(note int) *graph.Completion {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.voices[note]
	if v == nil {
		return nil
	}
	s.removeLocked(v)
	return s.releaseLocked(v, s.ctx.CurrentTime())
}

// StopAll releases every voice and empties the pool.
func (s *Synth) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.ctx.CurrentTime()
	for _, v := range s.order {
		s.releaseLocked(v, now)
	}
	s.order = s.order[:0]
	clear(s.voices)
}

func (s *Synth) SetMaxVoices(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.MaxVoices = clampInt(n, MinVoices, MaxVoices)
	now := s.ctx.CurrentTime()
	for len(s.order) > s.params.MaxVoices {
		s.evictOldestLocked(now)
	}
}

// SetWaveform applies to notes started afterwards.
func (s *Synth) SetWaveform(w Waveform) error {
	if !w.Valid() {
		s.log.WithField("waveform", int(w)).Warn("rejected waveform")
		return ErrUnknownWaveform
	}
	s.mu.Lock()
	s.params.Waveform = w
	s.mu.Unlock()
	return nil
}

// SetFilter updates the shared filter and retunes sounding voices.
func (s *Synth) SetFilter(t filter.Type, freq, q float64) error {
	if !t.Valid() {
		s.log.WithField("filter", int(t)).Warn("rejected filter type")
		return filter.ErrUnknownFilterType
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params.Filter = FilterSettings{
		Type:      t,
		Frequency: clamp(freq, MinFilterFreq, MaxFilterFreq),
		Q:         clamp(q, MinFilterQ, MaxFilterQ),
	}
	s.retuneLocked()
	return nil
}

// SetEnvelope applies to new notes; the release time also applies to
// sounding notes released afterwards.
func (s *Synth) SetEnvelope(attack, decay, sustain, release float64) {
	s.mu.Lock()
	s.params.Envelope = Envelope{Attack: attack, Decay: decay, Sustain: sustain, Release: release}.sanitize()
	s.mu.Unlock()
}

func (s *Synth) SetLFO(rate, amount float64) {
	s.mu.Lock()
	s.params.LFO = LFOSettings{Rate: clamp(rate, 0, MaxLFORate), Amount: clamp(amount, 0, 1)}
	s.mu.Unlock()
}

func (s *Synth) SetVolume(v float64) {
	v = clamp(v, 0, 1)
	s.mu.Lock()
	s.params.Volume = v
	s.mu.Unlock()
	s.volume.SetValue(v)
}

// SetParam sets a numeric parameter by id.
func (s *Synth) SetParam(id ParamID, v float64) error {
	p := s.Params()
	switch id {
	case ParamMaxVoices:
		s.SetMaxVoices(int(v))
	case ParamFilterFreq:
		return s.SetFilter(p.Filter.Type, v, p.Filter.Q)
	case ParamFilterQ:
		return s.SetFilter(p.Filter.Type, p.Filter.Frequency, v)
	case ParamAttack:
		s.SetEnvelope(v, p.Envelope.Decay, p.Envelope.Sustain, p.Envelope.Release)
	case ParamDecay:
		s.SetEnvelope(p.Envelope.Attack, v, p.Envelope.Sustain, p.Envelope.Release)
	case ParamSustain:
		s.SetEnvelope(p.Envelope.Attack, p.Envelope.Decay, v, p.Envelope.Release)
	case ParamRelease:
		s.SetEnvelope(p.Envelope.Attack, p.Envelope.Decay, p.Envelope.Sustain, v)
	case ParamLFORate:
		s.SetLFO(v, p.LFO.Amount)
	case ParamLFOAmount:
		s.SetLFO(p.LFO.Rate, v)
	case ParamVolume:
		s.SetVolume(v)
	default:
		s.log.WithField("param", int(id)).Warn("rejected synth parameter")
		return ErrUnknownParam
	}
	return nil
}

// Close empties the pool and resolves every sounding voice with EndStopped,
// so release continuations finish without further rendering. The synth is
// disconnected from its context.
func (s *Synth) Close() {
	s.mu.Lock()
	s.order = s.order[:0]
	clear(s.voices)
	s.mu.Unlock()

	s.busMu.Lock()
	sounding := s.sounding
	s.sounding = nil
	s.busMu.Unlock()

	s.ctx.Disconnect(s)
	for _, v := range sounding {
		v.playing.Store(false)
		v.ended.Resolve(graph.EndStopped)
	}
	s.log.WithField("voices", len(sounding)).Debug("synth closed")
}

// evictOldestLocked releases the voice with the smallest start time. On ties
// the earliest inserted voice goes.
func (s *Synth) evictOldestLocked(now float64) {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	for _, v := range s.order[1:] {
		if v.StartTime < oldest.StartTime {
			oldest = v
		}
	}
	s.removeLocked(oldest)
	s.releaseLocked(oldest, now)
	s.log.WithField("note", oldest.Note).Debug("voice stolen")
}

func (s *Synth) removeLocked(v *Voice) {
	for i, o := range s.order {
		if o == v {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.voices[v.Note] == v {
		delete(s.voices, v.Note)
	}
}

func (s *Synth) releaseLocked(v *Voice, now float64) *graph.Completion {
	done := v.release(now, s.params.Envelope.Release)
	done.Then(func(graph.EndReason) {
		v.reclaim()
		s.log.WithField("note", v.Note).Debug("voice reclaimed")
	})
	return done
}

func (s *Synth) retuneLocked() {
	f := s.params.Filter
	c := filter.Design(f.Type, f.Frequency, f.Q, float64(s.ctx.SampleRate()))
	for _, v := range s.order {
		v.setFilter(c)
	}
}

// Process renders the sounding voices through the synth gain bus.
func (s *Synth) Process(dst []float32, t float64) bool {
	frames := len(dst) / 2
	sr := float64(s.ctx.SampleRate())

	s.busMu.Lock()
	defer s.busMu.Unlock()
	if len(s.sounding) == 0 {
		return true
	}
	if cap(s.mixBuf) < len(dst) {
		s.mixBuf = make([]float32, len(dst))
	}
	mix := s.mixBuf[:frames*2]
	clear(mix)
	live := s.sounding[:0]
	for _, v := range s.sounding {
		if v.render(mix, t, sr) {
			live = append(live, v)
		}
	}
	clear(s.sounding[len(live):])
	s.sounding = live

	if cap(s.gainBuf) < frames {
		s.gainBuf = make([]float64, frames)
	}
	g := s.gainBuf[:frames]
	s.volume.Fill(g, t, 1/sr)
	for f := 0; f < frames; f++ {
		gf := float32(g[f])
		dst[f*2] += mix[f*2] * gf
		dst[f*2+1] += mix[f*2+1] * gf
	}
	return true
}

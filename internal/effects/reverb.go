package effects

// ReverbSettings configure the Schroeder reverb.
type ReverbSettings struct {
	RoomSize float64 // [0, 1], scales the comb lengths
	Decay    float64 // comb feedback [0, 0.95]
	Mix      float64 // [0, 1]
}

func DefaultReverb() ReverbSettings {
	return ReverbSettings{RoomSize: 0.5, Decay: 0.7, Mix: 0.3}
}

func (ReverbSettings) Kind() Kind { return KindReverb }

func (s ReverbSettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamRoomSize:
		s.RoomSize = clamp64(v, 0, 1)
	case ParamDecay:
		s.Decay = clamp64(v, 0, 0.95)
	case ParamMix:
		s.Mix = clamp64(v, 0, 1)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s ReverbSettings) newEffector(sampleRate int) Effector {
	return NewReverb(sampleRate, s)
}

// Comb and allpass lengths relative to the room base, in thousandths.
var (
	combRatios    = [4]int{1000, 1117, 1271, 1437}
	allpassRatios = [2]int{347, 213}
)

// Reverb is four parallel combs into two series allpasses, fed a mono sum.
type Reverb struct {
	combs   [4]delayLine
	allpass [2]delayLine
	wet     float32
}

type delayLine struct {
	buf []float32
	pos int
	fb  float32
}

func newDelayLine(n int, fb float32) delayLine {
	return delayLine{buf: make([]float32, max(n, 1)), fb: fb}
}

func (d *delayLine) comb(in float32) float32 {
	out := d.buf[d.pos]
	d.buf[d.pos] = in + out*d.fb
	d.advance()
	return out
}

func (d *delayLine) allpass(in float32) float32 {
	held := d.buf[d.pos]
	d.buf[d.pos] = in + held*d.fb
	d.advance()
	return held - in
}

func (d *delayLine) advance() {
	if d.pos++; d.pos == len(d.buf) {
		d.pos = 0
	}
}

func (d *delayLine) reset() {
	clear(d.buf)
	d.pos = 0
}

func NewReverb(sampleRate int, s ReverbSettings) *Reverb {
	base := max(int(float64(sampleRate)*s.RoomSize*0.05), 10)
	fb := clamp(float32(s.Decay), 0, 0.95)
	r := &Reverb{wet: clamp(float32(s.Mix), 0, 1)}
	for i, ratio := range combRatios {
		r.combs[i] = newDelayLine(base*ratio/1000, fb)
	}
	for i, ratio := range allpassRatios {
		r.allpass[i] = newDelayLine(base*ratio/1000, 0.5)
	}
	return r
}

func (r *Reverb) Process(l, rt float32) (float32, float32) {
	mono := (l + rt) * 0.5
	var out float32
	for i := range r.combs {
		out += r.combs[i].comb(mono)
	}
	out *= 0.25
	for i := range r.allpass {
		out = r.allpass[i].allpass(out)
	}
	return l*(1-r.wet) + out*r.wet, rt*(1-r.wet) + out*r.wet
}

func (r *Reverb) Reset() {
	for i := range r.combs {
		r.combs[i].reset()
	}
	for i := range r.allpass {
		r.allpass[i].reset()
	}
}

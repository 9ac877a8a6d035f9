package effects

// DelaySettings configure a stereo feedback delay.
type DelaySettings struct {
	TimeMs   float64 // [1, 2000]
	Feedback float64 // [0, 0.95]
	Cross    float64 // cross-channel feedback [0, 1]
	Mix      float64 // [0, 1]
}

func DefaultDelay() DelaySettings {
	return DelaySettings{TimeMs: 250, Feedback: 0.4, Mix: 0.3}
}

func (DelaySettings) Kind() Kind { return KindDelay }

func (s DelaySettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamTime:
		s.TimeMs = clamp64(v, 1, 2000)
	case ParamFeedback:
		s.Feedback = clamp64(v, 0, 0.95)
	case ParamCross:
		s.Cross = clamp64(v, 0, 1)
	case ParamMix:
		s.Mix = clamp64(v, 0, 1)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s DelaySettings) newEffector(sampleRate int) Effector {
	return NewDelay(sampleRate, s)
}

// Delay is a stereo delay line with feedback and cross-feed.
type Delay struct {
	bufL, bufR []float32
	pos        int
	feedback   float32
	cross      float32
	wet        float32
}

func NewDelay(sampleRate int, s DelaySettings) *Delay {
	samples := int(s.TimeMs * float64(sampleRate) / 1000.0)
	if samples < 1 {
		samples = 1
	}
	return &Delay{
		bufL:     make([]float32, samples),
		bufR:     make([]float32, samples),
		feedback: clamp(float32(s.Feedback), 0, 0.95),
		cross:    clamp(float32(s.Cross), 0, 1),
		wet:      clamp(float32(s.Mix), 0, 1),
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	tapL, tapR := d.bufL[d.pos], d.bufR[d.pos]
	straight := d.feedback * (1 - d.cross)
	crossed := d.feedback * d.cross
	d.bufL[d.pos] = l + tapL*straight + tapR*crossed
	d.bufR[d.pos] = r + tapR*straight + tapL*crossed
	if d.pos++; d.pos == len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + tapL*d.wet, r*(1-d.wet) + tapR*d.wet
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
}

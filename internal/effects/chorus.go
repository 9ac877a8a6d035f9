package effects

import "math"

// ChorusSettings configure a modulated delay. Short times with feedback
// give a flanger.
type ChorusSettings struct {
	TimeMs   float64 // base delay [1, 50]
	DepthMs  float64 // modulation depth [0, 20]
	RateHz   float64 // modulation rate [0.01, 10]
	Feedback float64 // [0, 0.9]
	Mix      float64 // [0, 1]
}

func DefaultChorus() ChorusSettings {
	return ChorusSettings{TimeMs: 15, DepthMs: 3, RateHz: 1.5, Feedback: 0.2, Mix: 0.5}
}

func (ChorusSettings) Kind() Kind { return KindChorus }

func (s ChorusSettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamTime:
		s.TimeMs = clamp64(v, 1, 50)
	case ParamDepth:
		s.DepthMs = clamp64(v, 0, 20)
	case ParamRate:
		s.RateHz = clamp64(v, 0.01, 10)
	case ParamFeedback:
		s.Feedback = clamp64(v, 0, 0.9)
	case ParamMix:
		s.Mix = clamp64(v, 0, 1)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s ChorusSettings) newEffector(sampleRate int) Effector {
	return NewChorus(sampleRate, s)
}

type Chorus struct {
	bufL, bufR []float32
	pos        int
	center     float32 // read offset in samples
	depth      float32 // modulation depth in samples
	step       float64 // radians per sample
	phase      float64
	feedback   float32
	wet        float32
}

func NewChorus(sampleRate int, s ChorusSettings) *Chorus {
	perMs := float64(sampleRate) / 1000.0
	base := s.TimeMs * perMs
	depth := math.Min(s.DepthMs*perMs, base)
	size := max(int(base+depth)+2, 4)
	return &Chorus{
		bufL:     make([]float32, size),
		bufR:     make([]float32, size),
		center:   float32(base),
		depth:    float32(depth),
		step:     2 * math.Pi * s.RateHz / float64(sampleRate),
		feedback: clamp(float32(s.Feedback), 0, 0.9),
		wet:      clamp(float32(s.Mix), 0, 1),
	}
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	mod := float32(math.Sin(c.phase)) * c.depth
	if c.phase += c.step; c.phase > 2*math.Pi {
		c.phase -= 2 * math.Pi
	}
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r

	n := float32(len(c.bufL))
	read := float32(c.pos) - (c.center + mod)
	for read < 0 {
		read += n
	}
	i := int(read) % len(c.bufL)
	j := (i + 1) % len(c.bufL)
	frac := read - float32(int(read))
	tapL := c.bufL[i] + (c.bufL[j]-c.bufL[i])*frac
	tapR := c.bufR[i] + (c.bufR[j]-c.bufR[i])*frac

	c.bufL[c.pos] += tapL * c.feedback
	c.bufR[c.pos] += tapR * c.feedback
	if c.pos++; c.pos == len(c.bufL) {
		c.pos = 0
	}
	return l*(1-c.wet) + tapL*c.wet, r*(1-c.wet) + tapR*c.wet
}

func (c *Chorus) Reset() {
	clear(c.bufL)
	clear(c.bufR)
	c.pos = 0
	c.phase = 0
}

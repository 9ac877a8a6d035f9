package effects

import "math"

// CompressorSettings configure a peak compressor with separate channel
// envelopes.
type CompressorSettings struct {
	ThresholdDB float64 // [-60, 0]
	Ratio       float64 // [1, 20]
	AttackMs    float64 // [0.1, 500]
	ReleaseMs   float64 // [1, 2000]
	MakeupDB    float64 // [0, 24]
}

func DefaultCompressor() CompressorSettings {
	return CompressorSettings{ThresholdDB: -20, Ratio: 4, AttackMs: 5, ReleaseMs: 100}
}

func (CompressorSettings) Kind() Kind { return KindCompressor }

func (s CompressorSettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamThreshold:
		s.ThresholdDB = clamp64(v, -60, 0)
	case ParamRatio:
		s.Ratio = clamp64(v, 1, 20)
	case ParamAttack:
		s.AttackMs = clamp64(v, 0.1, 500)
	case ParamRelease:
		s.ReleaseMs = clamp64(v, 1, 2000)
	case ParamMakeup:
		s.MakeupDB = clamp64(v, 0, 24)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s CompressorSettings) newEffector(sampleRate int) Effector {
	return NewCompressor(sampleRate, s)
}

type Compressor struct {
	threshold  float32
	slope      float64 // 1/ratio - 1
	attack     float32
	release    float32
	makeup     float32
	envL, envR float32
}

func NewCompressor(sampleRate int, s CompressorSettings) *Compressor {
	sr := float64(sampleRate)
	ratio := math.Max(s.Ratio, 1)
	return &Compressor{
		threshold: float32(dbToGain(s.ThresholdDB)),
		slope:     1/ratio - 1,
		attack:    float32(1 - math.Exp(-1/(s.AttackMs*sr/1000))),
		release:   float32(1 - math.Exp(-1/(s.ReleaseMs*sr/1000))),
		makeup:    float32(dbToGain(s.MakeupDB)),
	}
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	c.envL = c.follow(c.envL, l)
	c.envR = c.follow(c.envR, r)
	return l * c.gain(c.envL) * c.makeup, r * c.gain(c.envR) * c.makeup
}

func (c *Compressor) follow(env, x float32) float32 {
	level := float32(math.Abs(float64(x)))
	if level > env {
		return env + c.attack*(level-env)
	}
	return env + c.release*(level-env)
}

func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	return float32(math.Pow(float64(env/c.threshold), c.slope))
}

func (c *Compressor) Reset() {
	c.envL, c.envR = 0, 0
}

package effects

import "math"

// DistortionSettings configure tanh waveshaping.
type DistortionSettings struct {
	Drive  float64 // input gain [1, 100]
	Output float64 // output gain [0, 2]
	ToneHz float64 // one-pole lowpass after the shaper; 0 disables
}

func DefaultDistortion() DistortionSettings {
	return DistortionSettings{Drive: 4, Output: 0.7, ToneHz: 6000}
}

func (DistortionSettings) Kind() Kind { return KindDistortion }

func (s DistortionSettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamDrive:
		s.Drive = clamp64(v, 1, 100)
	case ParamOutput:
		s.Output = clamp64(v, 0, 2)
	case ParamTone:
		s.ToneHz = clamp64(v, 0, 20000)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s DistortionSettings) newEffector(sampleRate int) Effector {
	return NewDistortion(sampleRate, s)
}

type Distortion struct {
	drive    float32
	output   float32
	alpha    float32
	lpL, lpR float32
}

func NewDistortion(sampleRate int, s DistortionSettings) *Distortion {
	d := &Distortion{drive: float32(s.Drive), output: float32(s.Output)}
	if s.ToneHz > 0 && s.ToneHz < float64(sampleRate)/2 {
		d.alpha = float32(onePoleAlpha(s.ToneHz, sampleRate))
	}
	return d
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l*d.drive))) * d.output
	r = float32(math.Tanh(float64(r*d.drive))) * d.output
	if d.alpha == 0 {
		return l, r
	}
	d.lpL += d.alpha * (l - d.lpL)
	d.lpR += d.alpha * (r - d.lpR)
	return d.lpL, d.lpR
}

func (d *Distortion) Reset() {
	d.lpL, d.lpR = 0, 0
}

// onePoleAlpha is the smoothing factor of an RC lowpass at cutoff Hz.
func onePoleAlpha(cutoff float64, sampleRate int) float64 {
	rc := 1 / (2 * math.Pi * cutoff)
	dt := 1 / float64(sampleRate)
	return dt / (rc + dt)
}

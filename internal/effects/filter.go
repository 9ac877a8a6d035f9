package effects

import "github.com/cbegin/sonicdeck-go/internal/filter"

// FilterSettings configure a stereo biquad.
type FilterSettings struct {
	Type      filter.Type
	Frequency float64 // [10, 22050]
	Q         float64 // [0.0001, 1000]
}

func DefaultFilter() FilterSettings {
	return FilterSettings{Type: filter.Lowpass, Frequency: 1000, Q: 0.707}
}

func (FilterSettings) Kind() Kind { return KindFilter }

func (s FilterSettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamFrequency:
		s.Frequency = clamp64(v, 10, 22050)
	case ParamQ:
		s.Q = clamp64(v, 0.0001, 1000)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s FilterSettings) newEffector(sampleRate int) Effector {
	return NewFilter(sampleRate, s)
}

// Filter runs one biquad section per channel.
type Filter struct {
	left, right *filter.Section
}

func NewFilter(sampleRate int, s FilterSettings) *Filter {
	c := filter.Design(s.Type, s.Frequency, s.Q, float64(sampleRate))
	return &Filter{left: filter.NewSection(c), right: filter.NewSection(c)}
}

func (f *Filter) Process(l, r float32) (float32, float32) {
	return float32(f.left.ProcessSample(float64(l))), float32(f.right.ProcessSample(float64(r)))
}

func (f *Filter) Reset() {
	f.left.Reset()
	f.right.Reset()
}

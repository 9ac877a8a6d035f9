package effects

// EQSettings configure the three-band equalizer. Gains are linear.
type EQSettings struct {
	Low, Mid, High float64 // [0, 4]
	LowFreq        float64 // low/mid crossover [20, 2000]
	HighFreq       float64 // mid/high crossover [500, 16000]
}

func DefaultEQ() EQSettings {
	return EQSettings{Low: 1, Mid: 1, High: 1, LowFreq: 300, HighFreq: 3000}
}

func (EQSettings) Kind() Kind { return KindEQ }

func (s EQSettings) with(id ParamID, v float64) (Settings, error) {
	switch id {
	case ParamLow:
		s.Low = clamp64(v, 0, 4)
	case ParamMid:
		s.Mid = clamp64(v, 0, 4)
	case ParamHigh:
		s.High = clamp64(v, 0, 4)
	case ParamLowFreq:
		s.LowFreq = clamp64(v, 20, 2000)
	case ParamHighFreq:
		s.HighFreq = clamp64(v, 500, 16000)
	default:
		return s, ErrUnknownParam
	}
	return s, nil
}

func (s EQSettings) newEffector(sampleRate int) Effector {
	return NewEQ(sampleRate, s)
}

// EQ splits the signal with two one-pole lowpasses; mid is what remains.
type EQ struct {
	low, mid, high float32
	lowAlpha       float32
	highAlpha      float32
	lowL, lowR     float32
	splitL, splitR float32
}

func NewEQ(sampleRate int, s EQSettings) *EQ {
	return &EQ{
		low:       float32(s.Low),
		mid:       float32(s.Mid),
		high:      float32(s.High),
		lowAlpha:  float32(onePoleAlpha(s.LowFreq, sampleRate)),
		highAlpha: float32(onePoleAlpha(s.HighFreq, sampleRate)),
	}
}

func (eq *EQ) Process(l, r float32) (float32, float32) {
	eq.lowL += eq.lowAlpha * (l - eq.lowL)
	eq.lowR += eq.lowAlpha * (r - eq.lowR)
	eq.splitL += eq.highAlpha * (l - eq.splitL)
	eq.splitR += eq.highAlpha * (r - eq.splitR)

	highL, highR := l-eq.splitL, r-eq.splitR
	midL, midR := l-eq.lowL-highL, r-eq.lowR-highR
	return eq.lowL*eq.low + midL*eq.mid + highL*eq.high,
		eq.lowR*eq.low + midR*eq.mid + highR*eq.high
}

func (eq *EQ) Reset() {
	eq.lowL, eq.lowR = 0, 0
	eq.splitL, eq.splitR = 0, 0
}

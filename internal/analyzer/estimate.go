package analyzer

import (
	"math"
	"strconv"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Pitch is the nearest equal-tempered note to a frequency.
type Pitch struct {
	Frequency float64
	MIDINote  int
	NoteName  string
}

// binFrequency converts a spectrum index to Hz the way the level meters do:
// idx * sampleRate / (2 * fftSize).
func binFrequency(idx, sampleRate, fftSize int) float64 {
	return float64(idx) * float64(sampleRate) / float64(2*fftSize)
}

func argmax(xs []float64) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

// PitchOf maps f to a note. It returns nil outside [20, 20000] Hz.
func PitchOf(f float64) *Pitch {
	if !(f >= 20 && f <= 20000) {
		return nil
	}
	midi := int(math.Round(69 + 12*math.Log2(f/440)))
	octave := int(math.Floor(float64(midi)/12)) - 1
	return &Pitch{
		Frequency: f,
		MIDINote:  midi,
		NoteName:  noteNames[midi%12] + strconv.Itoa(octave),
	}
}

func estimatePitch(spectrum []float64, sampleRate, fftSize int) *Pitch {
	return PitchOf(binFrequency(argmax(spectrum), sampleRate, fftSize))
}

// estimateBPM is a loudness heuristic, not a beat tracker. When the mean
// spectrum energy exceeds 0.5 and the strongest bin maps into (0.5, 10) Hz
// the result is that rate in beats per minute; otherwise prev is kept.
func estimateBPM(spectrum []float64, sampleRate, fftSize int, prev *int) *int {
	if len(spectrum) == 0 {
		return prev
	}
	var sum float64
	for _, v := range spectrum {
		sum += v
	}
	if sum/float64(len(spectrum)) <= 0.5 {
		return prev
	}
	f := binFrequency(argmax(spectrum), sampleRate, fftSize)
	if f <= 0.5 || f >= 10 {
		return prev
	}
	bpm := int(math.Round(f * 60))
	return &bpm
}

package graph

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestParamDefaultValue(t *testing.T) {
	p := NewParam(0.7)
	if got := p.ValueAt(123); got != 0.7 {
		t.Fatalf("ValueAt = %v, want 0.7", got)
	}
	p.SetValue(0.2)
	if got := p.ValueAt(0); got != 0.2 {
		t.Fatalf("after SetValue = %v, want 0.2", got)
	}
}

func TestParamLinearRamp(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 1)
	p.LinearRampToValueAtTime(1, 2)

	for _, c := range []struct{ t, want float64 }{
		{0.5, 0}, {1, 0}, {1.25, 0.25}, {1.5, 0.5}, {2, 1}, {3, 1},
	} {
		if got := p.ValueAt(c.t); !near(got, c.want) {
			t.Errorf("ValueAt(%v) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestParamEventsStaySorted(t *testing.T) {
	p := NewParam(0)
	p.LinearRampToValueAtTime(1, 2)
	p.SetValueAtTime(0.5, 1)
	if got := p.ValueAt(1.5); !near(got, 0.75) {
		t.Fatalf("ValueAt(1.5) = %v, want 0.75", got)
	}
}

func TestParamCancelScheduledValues(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(1, 1)
	p.SetValueAtTime(2, 2)
	p.CancelScheduledValues(2)
	if got := p.ValueAt(3); got != 1 {
		t.Fatalf("ValueAt(3) = %v, want 1", got)
	}
}

func TestParamCancelAndHold(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	held := p.CancelAndHoldAtTime(0.4)
	if !near(held, 0.4) {
		t.Fatalf("held = %v, want 0.4", held)
	}
	if got := p.ValueAt(0.9); !near(got, 0.4) {
		t.Fatalf("ramp should be cancelled, ValueAt(0.9) = %v", got)
	}
	p.LinearRampToValueAtTime(0, 0.6)
	if got := p.ValueAt(0.5); !near(got, 0.2) {
		t.Fatalf("release ramp ValueAt(0.5) = %v, want 0.2", got)
	}
}

func TestParamFill(t *testing.T) {
	p := NewParam(0)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)

	dst := make([]float64, 5)
	p.Fill(dst, 0, 0.25)
	for i, want := range []float64{0, 0.25, 0.5, 0.75, 1} {
		if !near(dst[i], want) {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want)
		}
	}

	// Filling past the ramp prunes it without changing the value.
	p.Fill(dst, 2, 0.25)
	for i, v := range dst {
		if v != 1 {
			t.Errorf("after ramp dst[%d] = %v, want 1", i, v)
		}
	}
	if got := p.ValueAt(10); got != 1 {
		t.Fatalf("ValueAt(10) = %v, want 1", got)
	}
}

func TestParamIgnoresNaN(t *testing.T) {
	p := NewParam(0.5)
	p.SetValueAtTime(math.NaN(), 1)
	p.LinearRampToValueAtTime(1, math.NaN())
	if got := p.ValueAt(2); got != 0.5 {
		t.Fatalf("ValueAt = %v, want 0.5", got)
	}
}

package effects

import (
	"errors"
	"testing"

	"github.com/cbegin/sonicdeck-go/internal/filter"
)

func mustUnit(t *testing.T, k Kind) *Unit {
	t.Helper()
	u, err := NewUnit(k)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func kindsEqual(a, b []Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBuildKeepsInsertionOrderAndSkipsDisabled(t *testing.T) {
	c := NewChain(nil)
	c.Add(mustUnit(t, KindReverb))
	off := mustUnit(t, KindChorus)
	off.SetEnabled(false)
	c.Add(off)
	c.Add(mustUnit(t, KindDelay))
	c.Add(mustUnit(t, KindDelay))

	p := c.Build(44100)
	want := []Kind{KindReverb, KindDelay, KindDelay}
	if !kindsEqual(p.Kinds(), want) {
		t.Fatalf("path kinds = %v, want %v", p.Kinds(), want)
	}
	if c.Len() != 4 {
		t.Fatalf("chain length = %d, want 4", c.Len())
	}
}

func TestBuiltPathIsImmutable(t *testing.T) {
	c := NewChain(nil)
	d := mustUnit(t, KindDelay)
	r := mustUnit(t, KindReverb)
	c.Add(d)
	c.Add(r)
	p := c.Build(44100)

	if !c.Remove(d.ID()) {
		t.Fatal("Remove should find the unit")
	}
	if c.Remove(d.ID()) {
		t.Fatal("second Remove should report false")
	}
	r.SetEnabled(false)

	if p.Len() != 2 {
		t.Fatalf("existing path changed to %d stages", p.Len())
	}
	if next := c.Build(44100); next.Len() != 0 {
		t.Fatalf("next path should be empty, has %v", next.Kinds())
	}
}

func TestEmptyPathPassesThrough(t *testing.T) {
	p := NewChain(nil).Build(44100)
	buf := []float32{0.1, -0.2, 0.3, -0.4}
	p.ProcessInterleaved(buf)
	if buf[0] != 0.1 || buf[3] != -0.4 {
		t.Fatalf("empty path changed samples: %v", buf)
	}
}

func TestPathAppliesStagesInOrder(t *testing.T) {
	c := NewChain(nil)
	dist, _ := NewUnit(KindDistortion)
	_ = dist.Set(ParamTone, 0)
	_ = dist.Set(ParamDrive, 2)
	_ = dist.Set(ParamOutput, 1)
	c.Add(dist)
	delay, err := NewUnitWith(DelaySettings{TimeMs: 10, Mix: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	c.Add(delay)
	p := c.Build(44100)
	l, r := p.Process(0.5, 0.5)
	if l == 0 || r == 0 {
		t.Error("path should produce output")
	}
}

func TestUnitSetClampsAndRejects(t *testing.T) {
	u := mustUnit(t, KindDelay)
	if err := u.Set(ParamFeedback, 3); err != nil {
		t.Fatal(err)
	}
	if got := u.Settings().(DelaySettings).Feedback; got != 0.95 {
		t.Fatalf("feedback = %v, want 0.95", got)
	}
	before := u.Settings()
	if err := u.Set(ParamRatio, 2); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam, got %v", err)
	}
	if u.Settings() != before {
		t.Fatal("rejected parameter changed the settings")
	}
}

func TestUnitSettingsReachNextBuildOnly(t *testing.T) {
	c := NewChain(nil)
	u, err := NewUnitWith(DelaySettings{TimeMs: 1, Mix: 1})
	if err != nil {
		t.Fatal(err)
	}
	c.Add(u)
	first := c.Build(1000)
	if err := u.Set(ParamMix, 0); err != nil {
		t.Fatal(err)
	}
	second := c.Build(1000)

	if l, _ := first.Process(1, 1); l != 0 {
		t.Fatalf("fully wet delay should output its empty line, got %v", l)
	}
	if l, _ := second.Process(1, 1); l != 1 {
		t.Fatalf("dry delay should pass input, got %v", l)
	}
}

func TestSetFilterType(t *testing.T) {
	u := mustUnit(t, KindFilter)
	if err := u.SetFilterType(filter.Highpass); err != nil {
		t.Fatal(err)
	}
	if got := u.Settings().(FilterSettings).Type; got != filter.Highpass {
		t.Fatalf("type = %v", got)
	}
	if err := u.SetFilterType(filter.Type(77)); !errors.Is(err, filter.ErrUnknownFilterType) {
		t.Fatalf("expected ErrUnknownFilterType, got %v", err)
	}
	if err := mustUnit(t, KindReverb).SetFilterType(filter.Lowpass); !errors.Is(err, ErrUnknownParam) {
		t.Fatalf("expected ErrUnknownParam, got %v", err)
	}
}

func TestUnitIDsAreUnique(t *testing.T) {
	a, b := mustUnit(t, KindEQ), mustUnit(t, KindEQ)
	if a.ID() == b.ID() {
		t.Fatal("units should get distinct ids")
	}
}

func TestNewUnitWithRejectsNil(t *testing.T) {
	if _, err := NewUnitWith(nil); !errors.Is(err, ErrNilSettings) {
		t.Fatalf("expected ErrNilSettings, got %v", err)
	}
	c := NewChain(nil)
	c.Add(nil)
	if c.Len() != 0 {
		t.Fatalf("nil unit was added, len %d", c.Len())
	}
}

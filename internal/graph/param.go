package graph

import (
	"math"
	"sync"
)

type eventKind int

const (
	eventSet eventKind = iota
	eventLinearRamp
)

type automationEvent struct {
	kind  eventKind
	time  float64
	value float64
}

// Param is an automatable value evaluated against the audio clock.
// The control side schedules events; the render side samples them with Fill.
type Param struct {
	mu     sync.Mutex
	value  float64 // value before the first event
	events []automationEvent
}

// NewParam returns a parameter holding value with no scheduled automation.
func NewParam(value float64) *Param {
	return &Param{value: value}
}

// SetValue replaces the current value and drops all scheduled events.
func (p *Param) SetValue(v float64) {
	p.mu.Lock()
	p.value = v
	p.events = p.events[:0]
	p.mu.Unlock()
}

// SetValueAtTime holds v from time t onwards.
func (p *Param) SetValueAtTime(v, t float64) {
	p.mu.Lock()
	p.insert(automationEvent{kind: eventSet, time: t, value: v})
	p.mu.Unlock()
}

// LinearRampToValueAtTime ramps linearly from the previous event to v, reaching it at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.mu.Lock()
	p.insert(automationEvent{kind: eventLinearRamp, time: t, value: v})
	p.mu.Unlock()
}

// CancelScheduledValues removes every event at or after t.
func (p *Param) CancelScheduledValues(t float64) {
	p.mu.Lock()
	p.cancelFrom(t)
	p.mu.Unlock()
}

// CancelAndHoldAtTime removes events at or after t and pins the parameter
// to whatever value it had at t, so that new ramps start from the live value.
// It returns the held value.
func (p *Param) CancelAndHoldAtTime(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := p.valueAt(t)
	p.cancelFrom(t)
	p.insert(automationEvent{kind: eventSet, time: t, value: v})
	return v
}

// ValueAt evaluates the automation timeline at t.
func (p *Param) ValueAt(t float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valueAt(t)
}

// Fill writes one value per frame into dst, starting at t0 with step dt.
// Events fully in the past are pruned.
func (p *Param) Fill(dst []float64, t0, dt float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(t0)
	if len(p.events) == 0 {
		for i := range dst {
			dst[i] = p.value
		}
		return
	}
	for i := range dst {
		dst[i] = p.valueAt(t0 + float64(i)*dt)
	}
}

func (p *Param) insert(ev automationEvent) {
	if math.IsNaN(ev.time) || math.IsNaN(ev.value) {
		return
	}
	i := len(p.events)
	for i > 0 && p.events[i-1].time > ev.time {
		i--
	}
	p.events = append(p.events, automationEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = ev
}

func (p *Param) cancelFrom(t float64) {
	n := 0
	for _, ev := range p.events {
		if ev.time < t {
			p.events[n] = ev
			n++
		}
	}
	p.events = p.events[:n]
}

// prune drops events that can no longer influence values at or after t.
func (p *Param) prune(t float64) {
	last := -1
	for i, ev := range p.events {
		if ev.time > t {
			break
		}
		last = i
	}
	if last <= 0 {
		return
	}
	p.value = p.events[last-1].value
	p.events = append(p.events[:0], p.events[last:]...)
}

func (p *Param) valueAt(t float64) float64 {
	prevTime, prevValue := math.Inf(-1), p.value
	for _, ev := range p.events {
		if ev.time <= t {
			prevTime, prevValue = ev.time, ev.value
			continue
		}
		if ev.kind == eventLinearRamp {
			if math.IsInf(prevTime, -1) || ev.time <= prevTime {
				return prevValue
			}
			frac := (t - prevTime) / (ev.time - prevTime)
			return prevValue + (ev.value-prevValue)*frac
		}
		break
	}
	return prevValue
}

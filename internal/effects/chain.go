package effects

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Chain is the ordered list of units between a source and the master bus.
// Duplicates of a kind are allowed.
type Chain struct {
	log *logrus.Entry

	mu    sync.Mutex
	units []*Unit
}

func NewChain(log *logrus.Entry, units ...*Unit) *Chain {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Chain{log: log.WithField("component", "effects"), units: units}
}

// Add appends u. A nil unit is ignored.
func (c *Chain) Add(u *Unit) {
	if u == nil {
		return
	}
	c.mu.Lock()
	c.units = append(c.units, u)
	c.mu.Unlock()
	c.log.WithFields(logrus.Fields{"id": u.ID(), "kind": u.Kind()}).Debug("effect added")
}

// Remove deletes the unit with id. Paths already built keep it.
func (c *Chain) Remove(id uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, u := range c.units {
		if u.ID() == id {
			c.units = append(c.units[:i], c.units[i+1:]...)
			c.log.WithField("id", id).Debug("effect removed")
			return true
		}
	}
	return false
}

// Units returns the units in insertion order.
func (c *Chain) Units() []*Unit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Unit(nil), c.units...)
}

func (c *Chain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.units)
}

// Build instantiates a fresh processor for every enabled unit.
func (c *Chain) Build(sampleRate int) *Path {
	p := &Path{}
	for _, u := range c.Units() {
		on, s := u.snapshot()
		if !on {
			continue
		}
		p.stages = append(p.stages, s.newEffector(sampleRate))
		p.kinds = append(p.kinds, s.Kind())
	}
	return p
}

// Path is a built chain. It never changes after Build.
type Path struct {
	stages []Effector
	kinds  []Kind
}

func (p *Path) Process(l, r float32) (float32, float32) {
	for _, e := range p.stages {
		l, r = e.Process(l, r)
	}
	return l, r
}

// ProcessInterleaved runs the path in place over stereo frames.
func (p *Path) ProcessInterleaved(buf []float32) {
	if len(p.stages) == 0 {
		return
	}
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i], buf[i+1] = p.Process(buf[i], buf[i+1])
	}
}

func (p *Path) Reset() {
	for _, e := range p.stages {
		e.Reset()
	}
}

func (p *Path) Len() int { return len(p.stages) }

// Kinds lists the stage kinds in processing order.
func (p *Path) Kinds() []Kind { return append([]Kind(nil), p.kinds...) }

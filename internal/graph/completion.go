package graph

import (
	"context"
	"sync"
)

// EndReason tells why a Completion resolved.
type EndReason int

const (
	EndPending EndReason = iota
	// EndNatural means the source ran out of material or reached its scheduled end.
	EndNatural
	// EndStopped means a control call stopped the source early.
	EndStopped
)

// Completion is a one-shot future resolved by the render path (or by an
// explicit stop). Continuations registered with Then run on their own
// goroutine so they never block audio rendering.
type Completion struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	reason EndReason
}

// NewCompletion returns an unresolved Completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Resolve marks the completion done. Only the first call has an effect.
func (c *Completion) Resolve(reason EndReason) {
	c.once.Do(func() {
		c.mu.Lock()
		c.reason = reason
		c.mu.Unlock()
		close(c.done)
	})
}

// Done is closed once the completion resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether the completion has resolved.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Reason returns EndPending until resolved.
func (c *Completion) Reason() EndReason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Wait blocks until the completion resolves or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Then schedules fn to run after resolution.
func (c *Completion) Then(fn func(EndReason)) {
	go func() {
		<-c.done
		fn(c.Reason())
	}()
}

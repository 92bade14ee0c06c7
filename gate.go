package framejob

import (
	"sync/atomic"
)

// Gate is a one-shot completion signal. It starts unset, can be set exactly
// once, and never resets.
//
// Any writes made by a goroutine before it calls Set are visible to another
// goroutine once IsSet returns true for it, or once Done is closed.
type Gate struct {
	done chan struct{}
	set  atomic.Bool
}

// NewGate returns a new unset gate.
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Done returns a channel that's closed when the gate is set.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// IsSet returns whether the gate has been set. It never blocks.
func (g *Gate) IsSet() bool {
	return g.set.Load()
}

// Set sets the gate. Returns true if this call was the one that set it, and
// false if it'd already been set.
func (g *Gate) Set() bool {
	if !g.set.CompareAndSwap(false, true) {
		return false
	}

	close(g.done)
	return true
}

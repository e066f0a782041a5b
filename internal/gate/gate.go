// Package gate bounds how many jobs run their compute-heavy stages at once.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// DefaultCapacity is used when a non-positive capacity is supplied.
const DefaultCapacity = 3

// Gate is a counting admission gate. Waiters are admitted in arrival order.
type Gate struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// New constructs a gate with the given capacity.
func New(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gate{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}
}

// Acquire blocks until a permit is available or ctx ends. It fails only with
// the context's error.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.admitted()
	return nil
}

// TryAcquire takes a permit without blocking and reports whether it did.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	g.admitted()
	return true
}

func (g *Gate) admitted() {
	current := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			return
		}
	}
}

// Release returns a permit. It never blocks.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// InFlight returns how many permits are currently held.
func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

// Capacity returns the fixed permit count.
func (g *Gate) Capacity() int {
	return int(g.capacity)
}

// Peak returns the highest concurrent permit count observed.
func (g *Gate) Peak() int {
	return int(g.peak.Load())
}

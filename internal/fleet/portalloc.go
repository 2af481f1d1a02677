// SPDX-License-Identifier: MIT

package fleet

import "sync"

// PortAllocator hands out and reclaims ports from a bounded range for
// worker processes to bind their data-plane listener to.
type PortAllocator interface {
	// Acquire reserves and returns a free port. It returns
	// ErrPortPoolExhausted if none is available.
	Acquire() (int, error)

	// Release returns a previously acquired port to the pool. Releasing a
	// port that was not acquired, or releasing twice, is a no-op.
	Release(port int)

	// Usage reports the current in-use count and the total pool size, for
	// the port_pool health checker and metrics.
	Usage() (inUse, size int)
}

// freeListAllocator tracks free ports explicitly in a set, eliminating the
// collision window a counter-modulo scheme has once the fleet churns enough
// ports to wrap around.
type freeListAllocator struct {
	mu      sync.Mutex
	low     int
	high    int
	inUse   map[int]struct{}
}

// NewFreeListPortAllocator creates a PortAllocator over the inclusive range
// [low, high].
func NewFreeListPortAllocator(low, high int) PortAllocator {
	return &freeListAllocator{
		low:   low,
		high:  high,
		inUse: make(map[int]struct{}),
	}
}

func (a *freeListAllocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for p := a.low; p <= a.high; p++ {
		if _, taken := a.inUse[p]; !taken {
			a.inUse[p] = struct{}{}
			return p, nil
		}
	}
	return 0, ErrPortPoolExhausted
}

func (a *freeListAllocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, port)
}

func (a *freeListAllocator) Usage() (inUse, size int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse), a.high - a.low + 1
}

// moduloAllocator mirrors the source's base+(n mod size) scheme: a
// monotonic counter mapped into the range, with the in-use set consulted
// only to detect and skip a collision. Kept for fleets that want the
// simpler, cheaper allocation path and can tolerate the larger collision
// window under heavy churn.
type moduloAllocator struct {
	mu      sync.Mutex
	low     int
	high    int
	next    int
	inUse   map[int]struct{}
}

// NewModuloPortAllocator creates a counter-modulo PortAllocator over the
// inclusive range [low, high].
func NewModuloPortAllocator(low, high int) PortAllocator {
	return &moduloAllocator{
		low:   low,
		high:  high,
		inUse: make(map[int]struct{}),
	}
}

func (a *moduloAllocator) Acquire() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := a.high - a.low + 1
	for attempt := 0; attempt < size; attempt++ {
		port := a.low + (a.next % size)
		a.next++
		if _, taken := a.inUse[port]; !taken {
			a.inUse[port] = struct{}{}
			return port, nil
		}
	}
	return 0, ErrPortPoolExhausted
}

func (a *moduloAllocator) Release(port int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inUse, port)
}

func (a *moduloAllocator) Usage() (inUse, size int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse), a.high - a.low + 1
}

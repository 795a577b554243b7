package alloc

import (
	"fmt"
	"sync"
)

// Stats is a snapshot of allocator bookkeeping.
type Stats struct {
	Allocations   int
	Deallocations int

	// Outstanding is the number of elements currently allocated.
	Outstanding int

	// Mismatched counts deallocations whose n or block length differs from
	// what was allocated.
	Mismatched int
}

// Counting wraps another allocator and records what flows through it.
type Counting[T any] struct {
	mu    sync.Mutex
	inner Allocator[T]
	stats Stats
}

// NewCounting wraps inner. A nil inner uses Heap.
func NewCounting[T any](inner Allocator[T]) *Counting[T] {
	if inner == nil {
		inner = Heap[T]{}
	}
	return &Counting[T]{inner: inner}
}

// Allocate forwards to the wrapped allocator and counts successes.
func (c *Counting[T]) Allocate(n int) ([]T, error) {
	block, err := c.inner.Allocate(n)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Allocations++
	c.stats.Outstanding += n
	return block, nil
}

// Deallocate forwards to the wrapped allocator and counts the release.
func (c *Counting[T]) Deallocate(block []T, n int) {
	c.mu.Lock()
	c.stats.Deallocations++
	c.stats.Outstanding -= n
	if len(block) != n {
		c.stats.Mismatched++
	}
	c.mu.Unlock()

	c.inner.Deallocate(block, n)
}

// Stats returns a snapshot of the counters.
func (c *Counting[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Limited fails allocations that would push outstanding elements past a budget.
type Limited[T any] struct {
	mu          sync.Mutex
	inner       Allocator[T]
	limit       int
	outstanding int
}

// NewLimited wraps inner with an element budget. A nil inner uses Heap.
func NewLimited[T any](inner Allocator[T], limit int) *Limited[T] {
	if inner == nil {
		inner = Heap[T]{}
	}
	return &Limited[T]{inner: inner, limit: limit}
}

// Allocate returns ErrAllocationFailed when the budget would be exceeded.
func (l *Limited[T]) Allocate(n int) ([]T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.outstanding+n > l.limit {
		return nil, &AllocationError{
			Requested: n,
			Err:       fmt.Errorf("%w: budget %d, outstanding %d", ErrAllocationFailed, l.limit, l.outstanding),
		}
	}
	block, err := l.inner.Allocate(n)
	if err != nil {
		return nil, err
	}
	l.outstanding += n
	return block, nil
}

// Deallocate returns n elements to the budget.
func (l *Limited[T]) Deallocate(block []T, n int) {
	l.mu.Lock()
	l.outstanding -= n
	l.mu.Unlock()

	l.inner.Deallocate(block, n)
}

// Outstanding returns the number of elements currently allocated.
func (l *Limited[T]) Outstanding() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outstanding
}

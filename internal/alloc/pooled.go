package alloc

import (
	"math/bits"
	"sync"
)

// DefaultMaxPooledCapacity is the largest block Pooled keeps.
const DefaultMaxPooledCapacity = 1 << 16

// bucket pools blocks of one power-of-two capacity.
type bucket struct {
	capacity int
	pool     sync.Pool
}

// Pooled recycles blocks through power-of-two capacity buckets.
//
// Requests above the largest bucket are served by make and dropped on
// release. Blocks are zeroed before they go back to a bucket so the pool
// never pins released elements.
type Pooled[T any] struct {
	buckets     []*bucket
	maxCapacity int
}

// NewPooled creates buckets 1, 2, 4, ... up to maxCapacity (rounded up to a
// power of two). A non-positive maxCapacity uses DefaultMaxPooledCapacity.
func NewPooled[T any](maxCapacity int) *Pooled[T] {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxPooledCapacity
	}
	maxCapacity = roundUpPow2(maxCapacity)

	p := &Pooled[T]{maxCapacity: maxCapacity}
	for c := 1; c <= maxCapacity; c <<= 1 {
		b := &bucket{capacity: c}
		capacity := c
		b.pool.New = func() any {
			block := make([]T, capacity)
			return &block
		}
		p.buckets = append(p.buckets, b)
	}
	return p
}

// Allocate returns a block of len n backed by the smallest fitting bucket.
func (p *Pooled[T]) Allocate(n int) ([]T, error) {
	if n < 0 {
		return Heap[T]{}.Allocate(n)
	}
	if n == 0 {
		return []T{}, nil
	}
	if n > p.maxCapacity {
		return make([]T, n), nil
	}
	b := p.buckets[bucketIndex(n)]
	block := *(b.pool.Get().(*[]T))
	return block[:n], nil
}

// Deallocate zeroes the block and returns it to its bucket.
func (p *Pooled[T]) Deallocate(block []T, n int) {
	if n <= 0 || n > p.maxCapacity {
		return
	}
	full := block[:cap(block)]
	if cap(full) > p.maxCapacity {
		return
	}
	i := bucketIndex(cap(full))
	if p.buckets[i].capacity != cap(full) {
		// Not one of ours.
		return
	}
	clear(full)
	p.buckets[i].pool.Put(&full)
}

// MaxCapacity returns the largest pooled block size.
func (p *Pooled[T]) MaxCapacity() int {
	return p.maxCapacity
}

func bucketIndex(n int) int {
	return bits.Len(uint(n - 1))
}

func roundUpPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// Package alloc provides the storage capability used by sequence stores.
//
// An Allocator hands out blocks of exactly n elements and takes them back.
// Stores never call make themselves, so allocation accounting and failure
// injection work the same for every store.
package alloc

import (
	"errors"
	"fmt"
)

// ErrAllocationFailed is the sentinel wrapped by every allocation failure.
var ErrAllocationFailed = errors.New("allocation failed")

// AllocationError reports a block that could not be provided.
type AllocationError struct {
	Requested int
	Err       error
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocate %d elements: %v", e.Requested, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AllocationError) Unwrap() error {
	return e.Err
}

// Allocator provides raw element storage.
//
// Allocate returns a block with len == n. Deallocate receives a block
// previously returned by Allocate together with the n it was requested with.
type Allocator[T any] interface {
	Allocate(n int) ([]T, error)
	Deallocate(block []T, n int)
}

// Heap allocates with make and lets the garbage collector reclaim blocks.
type Heap[T any] struct{}

// NewHeap creates a heap allocator.
func NewHeap[T any]() Heap[T] {
	return Heap[T]{}
}

// Allocate returns a new zeroed block.
func (Heap[T]) Allocate(n int) ([]T, error) {
	if n < 0 {
		return nil, &AllocationError{Requested: n, Err: fmt.Errorf("%w: negative size", ErrAllocationFailed)}
	}
	return make([]T, n), nil
}

// Deallocate is a no-op.
func (Heap[T]) Deallocate([]T, int) {}

package alloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeap_Allocate(t *testing.T) {
	h := NewHeap[int]()

	block, err := h.Allocate(4)
	require.NoError(t, err)
	assert.Len(t, block, 4)
	assert.Equal(t, []int{0, 0, 0, 0}, block)

	empty, err := h.Allocate(0)
	require.NoError(t, err)
	assert.Len(t, empty, 0)

	_, err = h.Allocate(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocationFailed))

	var ae *AllocationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, -1, ae.Requested)
}

func TestCounting_TracksOutstanding(t *testing.T) {
	c := NewCounting[string](nil)

	a, err := c.Allocate(3)
	require.NoError(t, err)
	b, err := c.Allocate(5)
	require.NoError(t, err)

	assert.Equal(t, Stats{Allocations: 2, Outstanding: 8}, c.Stats())

	c.Deallocate(a, 3)
	c.Deallocate(b, 5)
	assert.Equal(t, Stats{Allocations: 2, Deallocations: 2}, c.Stats())
}

func TestCounting_DetectsMismatchedRelease(t *testing.T) {
	c := NewCounting[int](nil)

	block, err := c.Allocate(4)
	require.NoError(t, err)
	c.Deallocate(block, 2)

	stats := c.Stats()
	assert.Equal(t, 1, stats.Mismatched)
	assert.Equal(t, 2, stats.Outstanding)
}

func TestCounting_FailedAllocationNotCounted(t *testing.T) {
	c := NewCounting[int](NewLimited[int](nil, 2))

	_, err := c.Allocate(3)
	require.Error(t, err)
	assert.Equal(t, Stats{}, c.Stats())
}

func TestLimited_EnforcesBudget(t *testing.T) {
	l := NewLimited[int](nil, 4)

	a, err := l.Allocate(3)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Outstanding())

	_, err = l.Allocate(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAllocationFailed))
	assert.Contains(t, err.Error(), "budget 4, outstanding 3")

	l.Deallocate(a, 3)
	assert.Equal(t, 0, l.Outstanding())

	b, err := l.Allocate(4)
	require.NoError(t, err)
	assert.Len(t, b, 4)
}

func TestPooled_AllocateRoundsToBucket(t *testing.T) {
	p := NewPooled[int](8)
	assert.Equal(t, 8, p.MaxCapacity())

	block, err := p.Allocate(3)
	require.NoError(t, err)
	assert.Len(t, block, 3)
	assert.Equal(t, 4, cap(block))

	zero, err := p.Allocate(0)
	require.NoError(t, err)
	assert.Len(t, zero, 0)

	big, err := p.Allocate(100)
	require.NoError(t, err)
	assert.Len(t, big, 100)

	_, err = p.Allocate(-2)
	assert.True(t, errors.Is(err, ErrAllocationFailed))
}

func TestPooled_ReleasedBlocksAreZeroed(t *testing.T) {
	p := NewPooled[*int](4)

	block, err := p.Allocate(2)
	require.NoError(t, err)
	v := 7
	block[0], block[1] = &v, &v
	p.Deallocate(block, 2)

	// sync.Pool may or may not hand back the same block; either way it is zeroed.
	again, err := p.Allocate(2)
	require.NoError(t, err)
	assert.Nil(t, again[0])
	assert.Nil(t, again[1])
}

func TestPooled_IgnoresForeignBlocks(t *testing.T) {
	p := NewPooled[int](8)

	assert.NotPanics(t, func() {
		p.Deallocate(make([]int, 3), 3)
		p.Deallocate(make([]int, 20), 20)
		p.Deallocate(make([]int, 5, 64), 5)
	})
}

func TestRoundUpPow2(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, 1}, {1, 1}, {2, 2}, {3, 4}, {4, 4}, {5, 8}, {1000, 1024},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, roundUpPow2(tt.in), "roundUpPow2(%d)", tt.in)
	}
}

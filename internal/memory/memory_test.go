package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapCountsAllocations(t *testing.T) {
	t.Parallel()
	h := NewHeap()
	a := h.Float32s(10)
	b := h.Float32s(6)
	require.Len(t, a, 10)
	require.Len(t, b, 6)

	s := h.Stats()
	assert.EqualValues(t, 2, s.Allocations)
	assert.EqualValues(t, 64, s.InUseBytes)

	h.Release(a)
	h.Release(b)
	s = h.Stats()
	assert.EqualValues(t, 0, s.InUseBytes)
	assert.EqualValues(t, 64, s.PeakBytes)
	assert.Nil(t, h.Float32s(0))
}

func TestSizeClass(t *testing.T) {
	t.Parallel()
	cases := map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 1024: 10, 1025: 11}
	for n, want := range cases {
		assert.Equal(t, want, sizeClass(n), "n=%d", n)
	}
}

func TestPoolRecyclesWithinClass(t *testing.T) {
	t.Parallel()
	p := NewPool(2)
	a := p.Float32s(100)
	require.Len(t, a, 100)
	require.Equal(t, 128, cap(a))
	p.Release(a)

	b := p.Float32s(120)
	require.Len(t, b, 120)
	assert.EqualValues(t, 1, p.Recycled())
	p.Release(b)

	s := p.Stats()
	assert.EqualValues(t, 2, s.Allocations)
	assert.EqualValues(t, 2, s.Releases)
	assert.EqualValues(t, 0, s.InUseBytes)
}

func TestPoolConcurrentUse(t *testing.T) {
	t.Parallel()
	p := NewPool(8)
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := range 200 {
				buf := p.Float32s(16 + (seed*31+i)%200)
				for j := range buf {
					buf[j] = float32(seed)
				}
				p.Release(buf)
			}
		}(w)
	}
	wg.Wait()
	s := p.Stats()
	assert.EqualValues(t, 1600, s.Allocations)
	assert.EqualValues(t, 0, s.InUseBytes)
}

// Package memory provides the allocators layers use for transient per-call
// workspaces, such as the unfold buffer of a convolution.
package memory

import (
	"fmt"
	"math/bits"
	"sync"
)

// Manager hands out float32 workspaces. A workspace is only valid until it is
// released; its initial contents are unspecified.
type Manager interface {
	Float32s(n int) []float32
	Release(buf []float32)
	Stats() Stats
}

// Stats summarises allocator activity.
type Stats struct {
	Allocations int64
	Releases    int64
	InUseBytes  int64
	PeakBytes   int64
}

func (s Stats) String() string {
	return fmt.Sprintf("{allocs=%d releases=%d inUse=%dB peak=%dB}", s.Allocations, s.Releases, s.InUseBytes, s.PeakBytes)
}

func (s *Stats) alloc(bytes int64) {
	s.Allocations++
	s.InUseBytes += bytes
	if s.InUseBytes > s.PeakBytes {
		s.PeakBytes = s.InUseBytes
	}
}

func (s *Stats) release(bytes int64) {
	s.Releases++
	s.InUseBytes -= bytes
}

// Heap is the default manager: every request is a fresh heap allocation and
// Release only updates the counters. It is not safe for concurrent use.
type Heap struct {
	stats Stats
}

// NewHeap returns the default heap manager.
func NewHeap() *Heap { return &Heap{} }

func (h *Heap) Float32s(n int) []float32 {
	if n <= 0 {
		return nil
	}
	h.stats.alloc(int64(n) * 4)
	return make([]float32, n)
}

func (h *Heap) Release(buf []float32) {
	if buf == nil {
		return
	}
	h.stats.release(int64(len(buf)) * 4)
}

func (h *Heap) Stats() Stats { return h.stats }

// Pool recycles workspaces in power-of-two size classes. It is safe for
// concurrent use and is the manager to share between goroutines.
type Pool struct {
	mu       sync.Mutex
	free     map[int][][]float32
	maxFree  int
	stats    Stats
	recycled int64
}

// NewPool returns a pool keeping at most maxFreePerClass idle workspaces per
// size class. A non-positive value keeps four.
func NewPool(maxFreePerClass int) *Pool {
	if maxFreePerClass <= 0 {
		maxFreePerClass = 4
	}
	return &Pool{
		free:    make(map[int][][]float32),
		maxFree: maxFreePerClass,
	}
}

func sizeClass(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

func (p *Pool) Float32s(n int) []float32 {
	if n <= 0 {
		return nil
	}
	class := sizeClass(n)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.alloc(int64(n) * 4)
	if list := p.free[class]; len(list) > 0 {
		buf := list[len(list)-1]
		p.free[class] = list[:len(list)-1]
		p.recycled++
		return buf[:n]
	}
	return make([]float32, n, 1<<class)
}

func (p *Pool) Release(buf []float32) {
	if buf == nil {
		return
	}
	class := sizeClass(cap(buf))
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.release(int64(len(buf)) * 4)
	if cap(buf) != 1<<class || len(p.free[class]) >= p.maxFree {
		return
	}
	p.free[class] = append(p.free[class], buf[:cap(buf)])
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Recycled reports how many requests were served from the free lists.
func (p *Pool) Recycled() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recycled
}

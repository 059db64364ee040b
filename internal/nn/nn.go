// Package nn implements the streaming layers: leaf compute layers (Identity,
// ReLU, LayerNorm, Linear, Conv1d) and the composites Sequential and Residual.
//
// Every layer reads buffer 0 of its input state and writes buffer 0 of the
// successor state it links in Start. Layers keep no per-stream data of their
// own; cross-chunk history lives in the unconsumed part of the input buffers.
package nn

import (
	"fmt"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/memory"
	"github.com/samcharles93/streamrt/internal/stream"
)

// base carries what every layer shares: the workspace allocator.
type base struct {
	mm memory.Manager
}

func newBase() base { return base{mm: memory.NewHeap()} }

// SetMemoryManager replaces the workspace allocator. A nil manager restores a
// private heap manager.
func (b *base) SetMemoryManager(m memory.Manager) {
	if m == nil {
		m = memory.NewHeap()
	}
	b.mm = m
}

// MemoryManager returns the workspace allocator in use.
func (b *base) MemoryManager() memory.Manager { return b.mm }

// Clear is a no-op for layers without per-stream caches.
func (b *base) Clear() {}

// link establishes the single-buffer successor of in.
func link(name string, in *stream.State) (*stream.State, error) {
	if in == nil || in.Len() == 0 {
		return nil, fmt.Errorf("%w: %s: input state has no buffers", stream.ErrInvalidArgument, name)
	}
	return in.Next(true, 1), nil
}

// ioPair returns the input buffer of in and the successor linked by Start.
func ioPair(name string, in *stream.State) (*iobuf.Buffer, *stream.State, error) {
	if in == nil || in.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: %s: input state has no buffers", stream.ErrInvalidArgument, name)
	}
	out := in.Next(false, 0)
	if out == nil || out.Len() == 0 {
		return nil, nil, fmt.Errorf("%w: %s", stream.ErrNotStarted, name)
	}
	return in.Buffer(0), out, nil
}

// float32Param validates a float32 parameter of the given length.
func float32Param(layer, what string, p *stream.Parameter, want int) ([]float32, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: %s: %s is nil", stream.ErrInvalidArgument, layer, what)
	}
	if p.Type() != stream.Float32 {
		return nil, fmt.Errorf("%w: %s: %s is %s, want float32", stream.ErrInvalidArgument, layer, what, p.Type())
	}
	if p.Len() != want {
		return nil, fmt.Errorf("%w: %s: %s has %d elements, want %d", stream.ErrInvalidArgument, layer, what, p.Len(), want)
	}
	return p.Float32s()
}

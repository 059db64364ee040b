package nn

import (
	"fmt"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/memory"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/tensor"
)

// Residual computes x + module(x) over a stream.
//
// Start appends a carry buffer to the input state. Every Run and Finish copies
// the incoming chunk into it before the wrapped module sees the data, then sums
// as many values as both the carry and the module output hold. Whatever is left
// of the carry waits for the module's delayed output in later calls.
//
// The module may lag behind its input but never lead it: output left over
// after the sum is reported as ErrLatencyContract.
type Residual struct {
	base
	module   stream.Module
	dtype    stream.DataType
	identity *Identity
}

func NewResidual(module stream.Module, dtype stream.DataType) (*Residual, error) {
	if module == nil {
		return nil, fmt.Errorf("%w: Residual with nil module", stream.ErrInvalidArgument)
	}
	return &Residual{base: newBase(), module: module, dtype: dtype, identity: NewIdentity()}, nil
}

// Module returns the wrapped module.
func (r *Residual) Module() stream.Module { return r.module }

func (r *Residual) Start(in *stream.State) (*stream.State, error) {
	if in == nil || in.Len() == 0 {
		return nil, fmt.Errorf("%w: Residual: input state has no buffers", stream.ErrInvalidArgument)
	}
	in.AddBuffer()
	branch, err := r.identity.Start(in)
	if err != nil {
		return nil, err
	}
	out, err := r.module.Start(branch)
	if err != nil {
		return nil, err
	}
	if out == nil || out.Len() == 0 {
		return nil, fmt.Errorf("%w: Residual: wrapped module returned no output state", stream.ErrInvalidArgument)
	}
	return out.Next(true, 1), nil
}

func (r *Residual) Run(in *stream.State) (*stream.State, error) {
	return r.step(in, stream.Module.Run)
}

func (r *Residual) Finish(in *stream.State) (*stream.State, error) {
	return r.step(in, stream.Module.Finish)
}

func (r *Residual) step(in *stream.State, call phase) (*stream.State, error) {
	if in == nil || in.Len() < 2 {
		return nil, fmt.Errorf("%w: Residual", stream.ErrNotStarted)
	}
	carry := in.Buffer(in.Len() - 1)
	iobuf.Write(carry, in.Buffer(0).Bytes())

	branch, err := call(r.identity, in)
	if err != nil {
		return nil, err
	}
	out, err := call(r.module, branch)
	if err != nil {
		return nil, err
	}
	sum := out.Next(false, 0)
	if sum == nil {
		return nil, fmt.Errorf("%w: Residual", stream.ErrNotStarted)
	}
	if err := r.sum(carry, out.Buffer(0), sum.Buffer(0)); err != nil {
		return nil, err
	}
	return sum, nil
}

// sum writes a+b for the values both buffers hold into c and consumes them.
func (r *Residual) sum(a, b, c *iobuf.Buffer) error {
	switch r.dtype {
	case stream.Float32:
		n := min(iobuf.Size[float32](a), iobuf.Size[float32](b))
		if n > 0 {
			iobuf.Ensure[float32](c, n)
			tensor.AddTo(iobuf.Tail[float32](c)[:n], iobuf.Data[float32](a), iobuf.Data[float32](b))
			if err := iobuf.Move[float32](c, n); err != nil {
				return err
			}
			if err := iobuf.Consume[float32](a, n); err != nil {
				return err
			}
			if err := iobuf.Consume[float32](b, n); err != nil {
				return err
			}
		}
		if left := iobuf.Size[float32](b); left > 0 {
			return fmt.Errorf("%w: module produced %d values ahead of its input", stream.ErrLatencyContract, left)
		}
		return nil
	default:
		return fmt.Errorf("%w: Residual sum for %s", stream.ErrUnsupported, r.dtype)
	}
}

func (r *Residual) Clear() { r.module.Clear() }

func (r *Residual) SetMemoryManager(mm memory.Manager) {
	r.base.SetMemoryManager(mm)
	r.module.SetMemoryManager(r.mm)
}

func (r *Residual) Info() stream.Info { return r.module.Info() }

func (r *Residual) Describe() stream.Node {
	n := stream.NewNode("Residual")
	inner := r.module.Describe()
	n.Module = &inner
	return n
}

func (r *Residual) String() string {
	return fmt.Sprintf("Residual: { %s}", r.module.String())
}

package nn

import (
	"fmt"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/tensor"
)

// ReLU clamps negative values to zero.
type ReLU struct {
	base
	dtype stream.DataType
}

func NewReLU(dtype stream.DataType) *ReLU {
	return &ReLU{base: newBase(), dtype: dtype}
}

func (m *ReLU) Start(in *stream.State) (*stream.State, error) {
	return link("ReLU", in)
}

func (m *ReLU) Run(in *stream.State) (*stream.State, error) {
	src, out, err := ioPair("ReLU", in)
	if err != nil {
		return nil, err
	}
	if m.dtype != stream.Float32 {
		return nil, fmt.Errorf("%w: ReLU for %s", stream.ErrUnsupported, m.dtype)
	}
	n := iobuf.Size[float32](src)
	if n == 0 {
		return out, nil
	}
	dst := out.Buffer(0)
	iobuf.Ensure[float32](dst, n)
	tensor.Relu(iobuf.Tail[float32](dst)[:n], iobuf.Data[float32](src))
	if err := iobuf.Move[float32](dst, n); err != nil {
		return nil, err
	}
	return out, iobuf.Consume[float32](src, n)
}

func (m *ReLU) Finish(in *stream.State) (*stream.State, error) { return m.Run(in) }

func (m *ReLU) Info() stream.Info { return stream.PassthroughInfo() }

func (m *ReLU) Describe() stream.Node { return stream.NewNode("ReLU") }

func (m *ReLU) String() string { return fmt.Sprintf("ReLU:{dataType=%s}", m.dtype) }

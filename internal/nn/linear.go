package nn

import (
	"fmt"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/tensor"
)

// Linear applies y = x*W + b to every frame of nInput values. W is stored
// packed at half precision. Linear touches no per-stream data, so one
// instance can serve several streams at once.
type Linear struct {
	base
	nInput  int
	nOutput int
	weights *tensor.PackedF16
	bias    []float32
}

// NewLinear builds a linear layer. weights is a float32 parameter laid out as
// [nInput][nOutput]; bias is a float32 parameter of nOutput values.
func NewLinear(nInput, nOutput int, weights, bias *stream.Parameter) (*Linear, error) {
	if nInput <= 0 || nOutput <= 0 {
		return nil, fmt.Errorf("%w: Linear nInput=%d nOutput=%d weights=%s bias=%s",
			stream.ErrInvalidArgument, nInput, nOutput, weights, bias)
	}
	w, err := float32Param("Linear", "weights", weights, nInput*nOutput)
	if err != nil {
		return nil, err
	}
	b, err := float32Param("Linear", "bias", bias, nOutput)
	if err != nil {
		return nil, err
	}
	packed, err := tensor.PackF16(tensor.NoTranspose, nInput, nOutput, 1, w)
	if err != nil {
		return nil, fmt.Errorf("%w: Linear: %v", stream.ErrInvalidArgument, err)
	}
	return &Linear{base: newBase(), nInput: nInput, nOutput: nOutput, weights: packed, bias: b}, nil
}

func (m *Linear) Start(in *stream.State) (*stream.State, error) {
	return link("Linear", in)
}

func (m *Linear) Run(in *stream.State) (*stream.State, error) {
	src, out, err := ioPair("Linear", in)
	if err != nil {
		return nil, err
	}
	frames := iobuf.Size[float32](src) / m.nInput
	if frames == 0 {
		return out, nil
	}
	n := frames * m.nOutput
	dst := out.Buffer(0)
	iobuf.Ensure[float32](dst, n)
	y := iobuf.Tail[float32](dst)[:n]
	tensor.Repeat(y, m.bias)
	tensor.GemmF16(frames, iobuf.Data[float32](src), m.nInput, m.weights, 1, y, m.nOutput)
	if err := iobuf.Move[float32](dst, n); err != nil {
		return nil, err
	}
	return out, iobuf.Consume[float32](src, frames*m.nInput)
}

func (m *Linear) Finish(in *stream.State) (*stream.State, error) { return m.Run(in) }

// Weights decodes the packed matrix into [nInput][nOutput] float32 values.
func (m *Linear) Weights() []float32 { return m.weights.Unpack() }

// Bias returns a copy of the bias.
func (m *Linear) Bias() []float32 { return append([]float32(nil), m.bias...) }

func (m *Linear) Info() stream.Info {
	return stream.Info{
		InShape:     stream.Shape2D,
		InChannels:  m.nInput,
		OutShape:    stream.Shape2D,
		OutChannels: m.nOutput,
	}
}

func (m *Linear) Describe() stream.Node {
	return stream.NewNode("Linear").
		With("inFeatures", m.nInput).
		With("outFeatures", m.nOutput)
}

func (m *Linear) String() string { return m.DebugString(false) }

// DebugString describes the layer, optionally listing the decoded weights.
func (m *Linear) DebugString(withContent bool) string {
	return fmt.Sprintf("LinearFbGemm:{nInput=%d nOutput=%d weights=%s bias=%d}",
		m.nInput, m.nOutput, m.weights.Describe(withContent), len(m.bias))
}

package nn

import (
	"fmt"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/tensor"
)

// minStdDev is the smallest standard deviation used as a divisor; frames
// flatter than this are normalised with a divisor of 1.
const minStdDev = 1e-5

// LayerNorm normalises every frame of featureSize values to zero mean and unit
// population deviation, then applies alpha*x + beta. It needs no history.
type LayerNorm struct {
	base
	featureSize int
	alpha, beta float32
}

func NewLayerNorm(featureSize int, alpha, beta float32) (*LayerNorm, error) {
	if featureSize <= 0 {
		return nil, fmt.Errorf("%w: LayerNorm featureSize=%d alpha=%g beta=%g", stream.ErrInvalidArgument, featureSize, alpha, beta)
	}
	return &LayerNorm{base: newBase(), featureSize: featureSize, alpha: alpha, beta: beta}, nil
}

func (m *LayerNorm) Start(in *stream.State) (*stream.State, error) {
	return link("LayerNorm", in)
}

func (m *LayerNorm) Run(in *stream.State) (*stream.State, error) {
	src, out, err := ioPair("LayerNorm", in)
	if err != nil {
		return nil, err
	}
	frames := iobuf.Size[float32](src) / m.featureSize
	if frames == 0 {
		return out, nil
	}
	n := frames * m.featureSize
	dst := out.Buffer(0)
	iobuf.Ensure[float32](dst, n)
	x := iobuf.Data[float32](src)
	y := iobuf.Tail[float32](dst)
	for t := range frames {
		frame := x[t*m.featureSize : (t+1)*m.featureSize]
		mean, stddev := tensor.MeanStdDev(frame)
		if stddev <= minStdDev {
			stddev = 1
		}
		tensor.MeanNormalize(y[t*m.featureSize:(t+1)*m.featureSize], frame, mean, stddev, m.alpha, m.beta)
	}
	if err := iobuf.Move[float32](dst, n); err != nil {
		return nil, err
	}
	return out, iobuf.Consume[float32](src, n)
}

func (m *LayerNorm) Finish(in *stream.State) (*stream.State, error) { return m.Run(in) }

func (m *LayerNorm) Info() stream.Info { return stream.PassthroughInfo() }

func (m *LayerNorm) Describe() stream.Node {
	return stream.NewNode("LayerNorm").
		With("featureSize", m.featureSize).
		With("alpha", m.alpha).
		With("beta", m.beta)
}

func (m *LayerNorm) String() string {
	return fmt.Sprintf("LayerNorm:{featureSize=%d alpha=%g beta=%g}", m.featureSize, m.alpha, m.beta)
}

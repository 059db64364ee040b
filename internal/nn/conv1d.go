package nn

import (
	"fmt"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/tensor"
)

// Conv1d is a streaming 1-D convolution over frames of inChannels values.
//
// Start prepends leftPadding zero frames and Finish appends rightPadding zero
// frames. Run emits every output frame whose window is complete and consumes
// only nOut*stride input frames; the frames it leaves behind are the history
// the next chunk's windows need. Callers must therefore never clear the input
// buffer between chunks of one stream.
//
// Channels are split into groups that are convolved independently, each with
// its own packed weight block.
type Conv1d struct {
	base
	inChannels   int
	outChannels  int
	kernelSize   int
	stride       int
	leftPadding  int
	rightPadding int
	groups       int
	weights      []*tensor.PackedF16
	bias         []float32
}

// NewConv1d builds a convolution. weights is a float32 parameter laid out as
// [outChannels][kernelSize][inChannels/groups]; bias holds outChannels values.
func NewConv1d(inChannels, outChannels, kernelSize, stride, leftPadding, rightPadding, groups int, weights, bias *stream.Parameter) (*Conv1d, error) {
	if inChannels <= 0 || outChannels <= 0 || kernelSize <= 0 || stride <= 0 || groups <= 0 ||
		leftPadding < 0 || rightPadding < 0 ||
		inChannels%groups != 0 || outChannels%groups != 0 {
		return nil, fmt.Errorf("%w: Conv1d inChannels=%d outChannels=%d kernelSize=%d stride=%d leftPadding=%d rightPadding=%d groups=%d weights=%s bias=%s",
			stream.ErrInvalidArgument, inChannels, outChannels, kernelSize, stride, leftPadding, rightPadding, groups, weights, bias)
	}
	perIn, perOut := inChannels/groups, outChannels/groups
	rowLen := kernelSize * perIn
	w, err := float32Param("Conv1d", "weights", weights, outChannels*rowLen)
	if err != nil {
		return nil, err
	}
	b, err := float32Param("Conv1d", "bias", bias, outChannels)
	if err != nil {
		return nil, err
	}
	m := &Conv1d{
		base:         newBase(),
		inChannels:   inChannels,
		outChannels:  outChannels,
		kernelSize:   kernelSize,
		stride:       stride,
		leftPadding:  leftPadding,
		rightPadding: rightPadding,
		groups:       groups,
		weights:      make([]*tensor.PackedF16, groups),
		bias:         b,
	}
	blockLen := perOut * rowLen
	for g := range groups {
		// each group's slice is a perOut x rowLen matrix, i.e. the transpose
		// of the k x n operand the kernel multiplies by
		packed, err := tensor.PackF16(tensor.Transpose, rowLen, perOut, 1, w[g*blockLen:(g+1)*blockLen])
		if err != nil {
			return nil, fmt.Errorf("%w: Conv1d group %d: %v", stream.ErrInvalidArgument, g, err)
		}
		m.weights[g] = packed
	}
	return m, nil
}

// CreateConv1d is NewConv1d taking the padding as a {left, right} pair.
func CreateConv1d(inChannels, outChannels, kernelSize, stride int, padding [2]int, groups int, weights, bias *stream.Parameter) (*Conv1d, error) {
	return NewConv1d(inChannels, outChannels, kernelSize, stride, padding[0], padding[1], groups, weights, bias)
}

func (m *Conv1d) Start(in *stream.State) (*stream.State, error) {
	out, err := link("Conv1d", in)
	if err != nil {
		return nil, err
	}
	if m.leftPadding > 0 {
		buf := in.Buffer(0)
		pending := append([]float32(nil), iobuf.Data[float32](buf)...)
		buf.Clear()
		iobuf.WriteZero[float32](buf, m.leftPadding*m.inChannels)
		iobuf.Write(buf, pending)
	}
	return out, nil
}

// Finish drops a trailing partial frame, appends the right padding and emits
// the remaining windows.
func (m *Conv1d) Finish(in *stream.State) (*stream.State, error) {
	if in != nil && in.Len() > 0 {
		src := in.Buffer(0)
		n := iobuf.Size[float32](src)
		if rem := n % m.inChannels; rem != 0 {
			if err := iobuf.Truncate[float32](src, n-rem); err != nil {
				return nil, err
			}
		}
		if m.rightPadding > 0 {
			iobuf.WriteZero[float32](src, m.rightPadding*m.inChannels)
		}
	}
	return m.run(in, true)
}

func (m *Conv1d) Run(in *stream.State) (*stream.State, error) {
	return m.run(in, false)
}

// run emits every complete window. Mid-stream a window is only taken once the
// stride step past it has arrived too, so a stride longer than the kernel never
// consumes frames that are not there yet; at end of stream the trailing
// windows are emitted and consumption stops at the buffered frames.
func (m *Conv1d) run(in *stream.State, final bool) (*stream.State, error) {
	src, out, err := ioPair("Conv1d", in)
	if err != nil {
		return nil, err
	}
	span := m.kernelSize
	if !final {
		span = max(m.kernelSize, m.stride)
	}
	inFrames := iobuf.Size[float32](src) / m.inChannels
	if inFrames < span {
		return out, nil
	}
	outFrames := (inFrames-span)/m.stride + 1
	consumed := min(outFrames*m.stride, inFrames)
	outSize := outFrames * m.outChannels

	dst := out.Buffer(0)
	iobuf.Ensure[float32](dst, outSize)
	y := iobuf.Tail[float32](dst)[:outSize]
	tensor.Repeat(y, m.bias)

	perIn, perOut := m.inChannels/m.groups, m.outChannels/m.groups
	rowLen := m.kernelSize * perIn
	ws := m.mm.Float32s(outFrames * m.kernelSize * m.inChannels)
	defer m.mm.Release(ws)
	m.unfold(ws, iobuf.Data[float32](src), outFrames)
	for g := range m.groups {
		a := ws[g*outFrames*rowLen : (g+1)*outFrames*rowLen]
		tensor.GemmF16(outFrames, a, rowLen, m.weights[g], 1, y[g*perOut:], m.outChannels)
	}

	if err := iobuf.Move[float32](dst, outSize); err != nil {
		return nil, err
	}
	return out, iobuf.Consume[float32](src, consumed*m.inChannels)
}

// unfold gathers, per group, the kernelSize frames of every output window
// into one contiguous row of ws. Rows are ordered [group][window].
func (m *Conv1d) unfold(ws, src []float32, outFrames int) {
	perIn := m.inChannels / m.groups
	rowLen := m.kernelSize * perIn
	for g := range m.groups {
		for t := range outFrames {
			row := ws[(g*outFrames+t)*rowLen : (g*outFrames+t+1)*rowLen]
			for k := range m.kernelSize {
				off := (t*m.stride+k)*m.inChannels + g*perIn
				copy(row[k*perIn:(k+1)*perIn], src[off:off+perIn])
			}
		}
	}
}

// Weights decodes the packed weights into [outChannels][kernelSize][inChannels/groups].
func (m *Conv1d) Weights() []float32 {
	perOut := m.outChannels / m.groups
	rowLen := m.kernelSize * m.inChannels / m.groups
	out := make([]float32, m.outChannels*rowLen)
	for g, p := range m.weights {
		for o := range perOut {
			row := out[(g*perOut+o)*rowLen:]
			for i := range rowLen {
				row[i] = p.At(i, o)
			}
		}
	}
	return out
}

// Bias returns a copy of the bias.
func (m *Conv1d) Bias() []float32 { return append([]float32(nil), m.bias...) }

func (m *Conv1d) Info() stream.Info {
	return stream.Info{
		InShape:     stream.Shape3D,
		InChannels:  m.inChannels,
		OutShape:    stream.Shape3D,
		OutChannels: m.outChannels,
	}
}

func (m *Conv1d) Describe() stream.Node {
	return stream.NewNode("Conv1d").
		With("inChannels", m.inChannels).
		With("outChannels", m.outChannels).
		With("kernelSize", m.kernelSize).
		With("groups", m.groups).
		With("stride", m.stride).
		With("leftPadding", m.leftPadding).
		With("rightPadding", m.rightPadding)
}

func (m *Conv1d) String() string {
	return fmt.Sprintf("Conv1dFbGemm:{inChannels=%d outChannels=%d kernelSize=%d stride=%d leftPadding=%d rightPadding=%d groups=%d bias=%d}",
		m.inChannels, m.outChannels, m.kernelSize, m.stride, m.leftPadding, m.rightPadding, m.groups, len(m.bias))
}

package nn

import (
	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/stream"
)

// Identity moves every unread byte of its input to its output.
type Identity struct {
	base
}

func NewIdentity() *Identity { return &Identity{base: newBase()} }

func (m *Identity) Start(in *stream.State) (*stream.State, error) {
	return link("Identity", in)
}

func (m *Identity) Run(in *stream.State) (*stream.State, error) {
	src, out, err := ioPair("Identity", in)
	if err != nil {
		return nil, err
	}
	n := src.Len()
	if n == 0 {
		return out, nil
	}
	iobuf.Write(out.Buffer(0), src.Bytes())
	return out, iobuf.Consume[byte](src, n)
}

func (m *Identity) Finish(in *stream.State) (*stream.State, error) { return m.Run(in) }

func (m *Identity) Info() stream.Info { return stream.PassthroughInfo() }

func (m *Identity) Describe() stream.Node { return stream.NewNode("Identity") }

func (m *Identity) String() string { return "Identity: {}" }

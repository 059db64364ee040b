package nn

import (
	"fmt"
	"strings"

	"github.com/samcharles93/streamrt/internal/memory"
	"github.com/samcharles93/streamrt/internal/stream"
)

// Sequential chains modules: each child's output state is the next child's
// input state. A child that produces nothing leaves the next one without input,
// so back-pressure needs no signalling.
type Sequential struct {
	base
	modules []stream.Module
}

func NewSequential(modules ...stream.Module) *Sequential {
	s := &Sequential{base: newBase()}
	for _, m := range modules {
		s.Add(m)
	}
	return s
}

// Add appends a module. The same module may be added to several containers.
func (s *Sequential) Add(m stream.Module) {
	s.modules = append(s.modules, m)
}

// Modules returns the children in order.
func (s *Sequential) Modules() []stream.Module {
	return append([]stream.Module(nil), s.modules...)
}

type phase func(stream.Module, *stream.State) (*stream.State, error)

func (s *Sequential) thread(in *stream.State, call phase) (*stream.State, error) {
	st := in
	for i, m := range s.modules {
		if m == nil {
			return nil, fmt.Errorf("%w: Sequential child %d is nil", stream.ErrInvalidArgument, i)
		}
		next, err := call(m, st)
		if err != nil {
			return nil, err
		}
		st = next
	}
	return st, nil
}

func (s *Sequential) Start(in *stream.State) (*stream.State, error) {
	return s.thread(in, stream.Module.Start)
}

func (s *Sequential) Run(in *stream.State) (*stream.State, error) {
	return s.thread(in, stream.Module.Run)
}

func (s *Sequential) Finish(in *stream.State) (*stream.State, error) {
	return s.thread(in, stream.Module.Finish)
}

func (s *Sequential) Clear() {
	for _, m := range s.modules {
		if m != nil {
			m.Clear()
		}
	}
}

func (s *Sequential) SetMemoryManager(mm memory.Manager) {
	s.base.SetMemoryManager(mm)
	for _, m := range s.modules {
		if m != nil {
			m.SetMemoryManager(s.mm)
		}
	}
}

// BoundaryInfo returns the descriptor of the first child and of the last child
// that fixes an output shape.
func (s *Sequential) BoundaryInfo() (in, out stream.Info) {
	if len(s.modules) == 0 {
		return stream.PassthroughInfo(), stream.PassthroughInfo()
	}
	in = s.modules[0].Info()
	out = in
	for _, m := range s.modules[1:] {
		if info := m.Info(); info.OutShape != stream.ShapePassthrough {
			out = info
		}
	}
	return in, out
}

func (s *Sequential) Info() stream.Info {
	in, out := s.BoundaryInfo()
	return stream.Info{
		InShape:     in.InShape,
		InChannels:  in.InChannels,
		OutShape:    out.OutShape,
		OutChannels: out.OutChannels,
	}
}

func (s *Sequential) Describe() stream.Node {
	n := stream.NewNode("Sequential")
	n.Children = make([]stream.Node, 0, len(s.modules))
	for _, m := range s.modules {
		n.Children = append(n.Children, m.Describe())
	}
	return n
}

func (s *Sequential) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential: { \n")
	for _, m := range s.modules {
		sb.WriteString(m.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("}")
	return sb.String()
}

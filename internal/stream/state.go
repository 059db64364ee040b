package stream

import (
	"fmt"
	"strings"

	"github.com/samcharles93/streamrt/internal/iobuf"
)

const defaultBufferBytes = 1024

// State is one pipeline position's I/O: the buffers a module reads from and a
// link to the state its downstream neighbour reads from. The chain is built
// once by Start and reused by every Run and Finish, so data left unconsumed in
// a buffer carries over to the next chunk. Clearing those buffers between
// chunks breaks convolution history.
type State struct {
	buffers []*iobuf.Buffer
	next    *State
}

// NewState returns a state with n empty buffers.
func NewState(n int) *State {
	s := &State{}
	for range n {
		s.AddBuffer()
	}
	return s
}

// Buffer returns the i-th buffer.
func (s *State) Buffer(i int) *iobuf.Buffer { return s.buffers[i] }

// Buffers returns the buffer list. The slice aliases the state.
func (s *State) Buffers() []*iobuf.Buffer { return s.buffers }

// Len returns the number of buffers.
func (s *State) Len() int { return len(s.buffers) }

// AddBuffer appends an empty buffer and returns it.
func (s *State) AddBuffer() *iobuf.Buffer {
	b := iobuf.New(defaultBufferBytes)
	s.buffers = append(s.buffers, b)
	return b
}

// Next returns the successor state. With createNew set, the first call links a
// successor holding bufferCount empty buffers and later calls return that same
// successor. Without createNew a missing successor yields nil.
func (s *State) Next(createNew bool, bufferCount int) *State {
	if s.next == nil && createNew {
		s.next = NewState(bufferCount)
	}
	return s.next
}

// Reset empties every buffer along the chain starting at s.
func (s *State) Reset() {
	for st := s; st != nil; st = st.next {
		for _, b := range st.buffers {
			b.Clear()
		}
	}
}

func (s *State) String() string {
	var sb strings.Builder
	sb.WriteString("State{buffers=[")
	for i, b := range s.buffers {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(b.String())
	}
	fmt.Fprintf(&sb, "] next=%t}", s.next != nil)
	return sb.String()
}

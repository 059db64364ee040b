package stream

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/memory"
)

func TestStateNextIsStable(t *testing.T) {
	t.Parallel()
	s := NewState(1)
	assert.Nil(t, s.Next(false, 1))

	next := s.Next(true, 2)
	require.NotNil(t, next)
	assert.Equal(t, 2, next.Len())
	assert.Same(t, next, s.Next(true, 5))
	assert.Same(t, next, s.Next(false, 0))
	assert.Equal(t, 2, next.Len())
}

func TestStateResetKeepsTopology(t *testing.T) {
	t.Parallel()
	s := NewState(1)
	iobuf.Write(s.Buffer(0), []float32{1, 2})
	next := s.Next(true, 1)
	iobuf.Write(next.Buffer(0), []float32{3})

	s.Reset()
	assert.Equal(t, 0, s.Buffer(0).Len())
	assert.Equal(t, 0, next.Buffer(0).Len())
	assert.Same(t, next, s.Next(false, 0))
}

func TestStateAddBuffer(t *testing.T) {
	t.Parallel()
	s := NewState(1)
	b := s.AddBuffer()
	assert.Equal(t, 2, s.Len())
	assert.Same(t, b, s.Buffer(1))
	assert.Contains(t, s.String(), "next=false")
}

func TestParameter(t *testing.T) {
	t.Parallel()
	p := NewFloat32Parameter([]float32{1.5, -2})
	assert.Equal(t, Float32, p.Type())
	assert.Equal(t, 2, p.Len())
	got, err := p.Float32s()
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, got)
	assert.Equal(t, "{type=float32 len=2}", p.String())

	raw := p.Bytes()
	raw[0] = 0xFF
	again, err := p.Float32s()
	require.NoError(t, err)
	assert.Equal(t, got, again, "Bytes must return a copy")

	i16, err := NewParameter(Int16, []byte{1, 0, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, i16.Len())
	_, err = i16.Float32s()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewParameter(Int32, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewParameter(Uninitialized, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDataType(t *testing.T) {
	t.Parallel()
	for _, d := range []DataType{Uninitialized, Float32, Float16, Int8, Int16, Int32} {
		got, err := ParseDataType(d.String())
		require.NoError(t, err)
		assert.Equal(t, d, got)
	}
	_, err := ParseDataType("bfloat16")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "DataType(42)", DataType(42).String())
	assert.Equal(t, 2, Float16.Size())

	var d DataType
	require.NoError(t, d.UnmarshalText([]byte("int8")))
	assert.Equal(t, Int8, d)
}

func TestNodeJSONKeepsFieldOrder(t *testing.T) {
	t.Parallel()
	leaf := NewNode("Conv1d").With("inChannels", 4).With("groups", 2)
	res := NewNode("Residual")
	res.Module = &leaf
	seq := NewNode("Sequential")
	seq.Children = []Node{res, NewNode("Identity")}

	b, err := json.Marshal(seq)
	require.NoError(t, err)
	assert.Equal(t,
		`{"name":"Sequential","children":[{"name":"Residual","module":{"name":"Conv1d","inChannels":4,"groups":2}},{"name":"Identity"}]}`,
		string(b))

	v, ok := leaf.Field("groups")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = leaf.Field("missing")
	assert.False(t, ok)
}

func TestNodeWithDoesNotAlias(t *testing.T) {
	t.Parallel()
	base := NewNode("X").With("a", 1)
	left := base.With("b", 2)
	right := base.With("c", 3)
	_, ok := left.Field("c")
	assert.False(t, ok)
	_, ok = right.Field("b")
	assert.False(t, ok)
}

type fakeModule struct {
	info Info
	in   Info
	out  Info
}

func (f *fakeModule) Start(in *State) (*State, error)  { return in, nil }
func (f *fakeModule) Run(in *State) (*State, error)    { return in, nil }
func (f *fakeModule) Finish(in *State) (*State, error) { return in, nil }
func (f *fakeModule) Clear()                           {}
func (f *fakeModule) SetMemoryManager(memory.Manager)  {}
func (f *fakeModule) Info() Info                       { return f.info }
func (f *fakeModule) Describe() Node                   { return NewNode("Fake") }
func (f *fakeModule) String() string                   { return "Fake" }

type fakeContainer struct{ fakeModule }

func (f *fakeContainer) BoundaryInfo() (Info, Info) { return f.in, f.out }

func TestDescribePipeline(t *testing.T) {
	t.Parallel()
	leaf := &fakeModule{info: Info{Shape3D, 80, Shape3D, 256}}
	n := DescribePipeline(leaf)
	in, ok := n.Field("inInfo")
	require.True(t, ok)
	assert.Equal(t, leaf.info, in)

	c := &fakeContainer{fakeModule{
		info: PassthroughInfo(),
		in:   Info{Shape3D, 80, Shape3D, 256},
		out:  Info{Shape2D, 256, Shape2D, 9998},
	}}
	b, err := MarshalDescription(c)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "Fake", decoded["name"])
	outInfo := decoded["outInfo"].(map[string]any)
	assert.EqualValues(t, 9998, outInfo["outChannels"])
	assert.EqualValues(t, Shape2D, outInfo["inShape"])
}

func TestPassthroughInfo(t *testing.T) {
	t.Parallel()
	info := PassthroughInfo()
	assert.Equal(t, ShapePassthrough, info.InShape)
	assert.Equal(t, -1, info.OutChannels)
	assert.Equal(t, "passthrough", info.OutShape.String())
}

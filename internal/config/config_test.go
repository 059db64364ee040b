package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/nn"
	"github.com/samcharles93/streamrt/internal/stream"
)

const demo = `
name: demo
input_channels: 2
chunk_frames: 4
seed: 7
layers:
  - type: conv1d
    in_channels: 2
    out_channels: 4
    kernel_size: 3
    padding: [2, 0]
    weights: {init: random, scale: 0.5}
    bias: {init: constant, value: 0.1}
  - type: relu
  - type: layernorm
    feature_size: 4
    beta: 0.25
  - type: residual
    layers:
      - type: conv1d
        in_channels: 4
        out_channels: 4
        kernel_size: 3
        groups: 2
        padding: [1, 1]
        weights: {init: identity}
      - type: identity
  - type: linear
    in_features: 4
    out_features: 3
    weights: {init: random}
`

func run(t *testing.T, m stream.Module, x []float32) []float32 {
	t.Helper()
	in := stream.NewState(1)
	out, err := m.Start(in)
	require.NoError(t, err)
	iobuf.Write(in.Buffer(0), x)
	out, err = m.Run(in)
	require.NoError(t, err)
	got := append([]float32(nil), iobuf.Data[float32](out.Buffer(0))...)
	require.NoError(t, iobuf.Consume[float32](out.Buffer(0), len(got)))
	out, err = m.Finish(in)
	require.NoError(t, err)
	return append(got, iobuf.Data[float32](out.Buffer(0))...)
}

func TestParseAndBuild(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(demo))
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)
	assert.Equal(t, 4, p.ChunkFrames)
	require.Len(t, p.Layers, 5)
	assert.Equal(t, []int{2, 0}, p.Layers[0].Padding)
	require.NotNil(t, p.Layers[2].Beta)
	assert.Equal(t, float32(0.25), *p.Layers[2].Beta)

	m, err := Build(p)
	require.NoError(t, err)
	seq, ok := m.(*nn.Sequential)
	require.True(t, ok)
	require.Len(t, seq.Modules(), 5)
	res, ok := seq.Modules()[3].(*nn.Residual)
	require.True(t, ok)
	assert.IsType(t, &nn.Sequential{}, res.Module())

	info := m.Info()
	assert.Equal(t, 2, info.InChannels)
	assert.Equal(t, 3, info.OutChannels)

	got := run(t, m, make([]float32, 10*2))
	assert.Len(t, got, 10*3)
}

func TestBuildIsDeterministic(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(demo))
	require.NoError(t, err)
	factory := p.Factory()
	a, err := factory()
	require.NoError(t, err)
	b, err := factory()
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	x := make([]float32, 12*2)
	for i := range x {
		x[i] = float32(i%7) - 3
	}
	assert.Equal(t, run(t, a, x), run(t, b, x))

	p.Seed++
	c, err := Build(p)
	require.NoError(t, err)
	assert.NotEqual(t, run(t, a, x), run(t, c, x))
}

func TestIdentityInitPassesSignalThrough(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`
layers:
  - type: conv1d
    in_channels: 2
    out_channels: 2
    kernel_size: 3
    padding: [2, 0]
    weights: {init: identity}
  - type: linear
    in_features: 2
    out_features: 2
    weights: {init: identity}
`))
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkFrames, p.ChunkFrames)
	m, err := Build(p)
	require.NoError(t, err)
	x := []float32{1, -2, 3, 0.5, -1, 4}
	assert.Equal(t, x, run(t, m, x))
}

func TestValuesInit(t *testing.T) {
	t.Parallel()
	p, err := Parse([]byte(`
layers:
  - type: linear
    in_features: 2
    out_features: 1
    weights: {init: values, values: [2, 3]}
    bias: {init: values, values: [1]}
`))
	require.NoError(t, err)
	m, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, run(t, m, []float32{1, 2}))
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"no layers":      `name: empty`,
		"unknown type":   "layers:\n  - type: lstm\n",
		"bad dtype":      "layers:\n  - type: relu\n    data_type: float64\n",
		"empty residual": "layers:\n  - type: residual\n",
		"bad padding":    "layers:\n  - type: conv1d\n    in_channels: 1\n    out_channels: 1\n    kernel_size: 1\n    padding: [1]\n",
		"bad conv":       "layers:\n  - type: conv1d\n    in_channels: 3\n    out_channels: 2\n    kernel_size: 1\n    groups: 2\n",
		"bad linear":     "layers:\n  - type: linear\n    in_features: 0\n    out_features: 2\n",
		"bad layernorm":  "layers:\n  - type: layernorm\n",
		"values length":  "layers:\n  - type: linear\n    in_features: 2\n    out_features: 2\n    weights: {init: values, values: [1]}\n",
		"identity bias":  "layers:\n  - type: linear\n    in_features: 2\n    out_features: 2\n    bias: {init: identity}\n",
		"unknown init":   "layers:\n  - type: linear\n    in_features: 2\n    out_features: 2\n    weights: {init: xavier}\n",

		"channel mismatch": "input_channels: 3\nlayers:\n  - type: linear\n    in_features: 2\n    out_features: 2\n",
	}
	for name, doc := range cases {
		p, err := Parse([]byte(doc))
		require.NoError(t, err, name)
		_, err = Build(p)
		assert.ErrorIs(t, err, stream.ErrInvalidArgument, name)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "p.yaml")
	require.NoError(t, os.WriteFile(path, []byte(demo), 0o644))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", p.Name)

	out, err := p.Marshal()
	require.NoError(t, err)
	again, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, p, again)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, err = Parse([]byte("layers: ["))
	assert.Error(t, err)
}

package config

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/streamrt/internal/nn"
	"github.com/samcharles93/streamrt/internal/stream"
)

// Build constructs the module tree. Layers at the top level are wrapped in a
// Sequential. Random initialisers draw from one generator seeded by p.Seed, so
// the same description always builds the same weights.
func Build(p *Pipeline) (stream.Module, error) {
	if len(p.Layers) == 0 {
		return nil, fmt.Errorf("%w: pipeline %q has no layers", stream.ErrInvalidArgument, p.Name)
	}
	b := &builder{rng: rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))}
	seq, err := b.sequential(p.Layers, "layers")
	if err != nil {
		return nil, err
	}
	if p.InputChannels > 0 {
		if in := seq.Info().InChannels; in > 0 && in != p.InputChannels {
			return nil, fmt.Errorf("%w: pipeline %q input_channels=%d but first layer takes %d",
				stream.ErrInvalidArgument, p.Name, p.InputChannels, in)
		}
	}
	return seq, nil
}

// Factory returns a constructor for independent copies of the pipeline, one
// per concurrent stream.
func (p *Pipeline) Factory() func() (stream.Module, error) {
	return func() (stream.Module, error) { return Build(p) }
}

type builder struct {
	rng *rand.Rand
}

func (b *builder) sequential(layers []Layer, path string) (*nn.Sequential, error) {
	seq := nn.NewSequential()
	for i := range layers {
		m, err := b.layer(&layers[i], fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		seq.Add(m)
	}
	return seq, nil
}

func (b *builder) layer(l *Layer, path string) (stream.Module, error) {
	m, err := b.build(l, path)
	if err != nil {
		return nil, fmt.Errorf("%s (%s): %w", path, l.Type, err)
	}
	return m, nil
}

func (b *builder) build(l *Layer, path string) (stream.Module, error) {
	switch l.Type {
	case KindConv1d:
		return b.conv1d(l)
	case KindLinear:
		return b.linear(l)
	case KindLayerNorm:
		alpha, beta := float32(1), float32(0)
		if l.Alpha != nil {
			alpha = *l.Alpha
		}
		if l.Beta != nil {
			beta = *l.Beta
		}
		return nn.NewLayerNorm(l.FeatureSize, alpha, beta)
	case KindReLU:
		dtype, err := dataType(l.DataType)
		if err != nil {
			return nil, err
		}
		return nn.NewReLU(dtype), nil
	case KindIdentity:
		return nn.NewIdentity(), nil
	case KindResidual:
		dtype, err := dataType(l.DataType)
		if err != nil {
			return nil, err
		}
		var inner stream.Module
		switch len(l.Layers) {
		case 0:
			return nil, fmt.Errorf("%w: residual wraps no layers", stream.ErrInvalidArgument)
		case 1:
			inner, err = b.layer(&l.Layers[0], path+".layers[0]")
		default:
			inner, err = b.sequential(l.Layers, path+".layers")
		}
		if err != nil {
			return nil, err
		}
		return nn.NewResidual(inner, dtype)
	case KindSequential:
		return b.sequential(l.Layers, path+".layers")
	default:
		return nil, fmt.Errorf("%w: unknown layer type %q", stream.ErrInvalidArgument, l.Type)
	}
}

func dataType(name string) (stream.DataType, error) {
	if name == "" {
		return stream.Float32, nil
	}
	return stream.ParseDataType(name)
}

func (b *builder) conv1d(l *Layer) (stream.Module, error) {
	stride, groups := l.Stride, l.Groups
	if stride == 0 {
		stride = 1
	}
	if groups == 0 {
		groups = 1
	}
	var padding [2]int
	switch len(l.Padding) {
	case 0:
	case 2:
		padding = [2]int{l.Padding[0], l.Padding[1]}
	default:
		return nil, fmt.Errorf("%w: padding needs [left, right], got %v", stream.ErrInvalidArgument, l.Padding)
	}
	if l.InChannels <= 0 || l.OutChannels <= 0 || l.KernelSize <= 0 || groups <= 0 ||
		l.InChannels%groups != 0 || l.OutChannels%groups != 0 {
		return nn.CreateConv1d(l.InChannels, l.OutChannels, l.KernelSize, stride, padding, groups, nil, nil)
	}
	perIn, perOut := l.InChannels/groups, l.OutChannels/groups
	k := l.KernelSize
	// identity: each output channel copies the matching input channel of its
	// group at the newest tap
	identity := func(w []float32) {
		for o := range l.OutChannels {
			if c := o % perOut; c < perIn {
				w[(o*k+k-1)*perIn+c] = 1
			}
		}
	}
	w, err := l.Weights.generate(l.OutChannels*k*perIn, b.rng, identity)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	bias, err := l.Bias.generate(l.OutChannels, b.rng, nil)
	if err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}
	return nn.CreateConv1d(l.InChannels, l.OutChannels, k, stride, padding, groups,
		stream.NewFloat32Parameter(w), stream.NewFloat32Parameter(bias))
}

func (b *builder) linear(l *Layer) (stream.Module, error) {
	if l.InFeatures <= 0 || l.OutFeatures <= 0 {
		return nn.NewLinear(l.InFeatures, l.OutFeatures, nil, nil)
	}
	nIn, nOut := l.InFeatures, l.OutFeatures
	identity := func(w []float32) {
		for i := range min(nIn, nOut) {
			w[i*nOut+i] = 1
		}
	}
	w, err := l.Weights.generate(nIn*nOut, b.rng, identity)
	if err != nil {
		return nil, fmt.Errorf("weights: %w", err)
	}
	bias, err := l.Bias.generate(nOut, b.rng, nil)
	if err != nil {
		return nil, fmt.Errorf("bias: %w", err)
	}
	return nn.NewLinear(nIn, nOut, stream.NewFloat32Parameter(w), stream.NewFloat32Parameter(bias))
}

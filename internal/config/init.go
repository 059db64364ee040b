package config

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/streamrt/internal/stream"
)

// Initialiser kinds.
const (
	InitZeros    = "zeros"
	InitConstant = "constant"
	InitIdentity = "identity"
	InitRandom   = "random"
	InitValues   = "values"
)

// Init says how to fill a parameter.
type Init struct {
	Kind   string    `yaml:"init"`
	Value  float32   `yaml:"value,omitempty"`
	Scale  float32   `yaml:"scale,omitempty"`
	Values []float32 `yaml:"values,omitempty"`
}

// identityFn writes an identity pattern into a zeroed parameter.
type identityFn func(w []float32)

// generate produces n values. A nil Init yields zeros. identity is nil for
// parameters without an identity pattern (biases).
func (in *Init) generate(n int, rng *rand.Rand, identity identityFn) ([]float32, error) {
	out := make([]float32, n)
	if in == nil {
		return out, nil
	}
	switch in.Kind {
	case "", InitZeros:
	case InitConstant:
		for i := range out {
			out[i] = in.Value
		}
	case InitIdentity:
		if identity == nil {
			return nil, fmt.Errorf("%w: identity init does not apply here", stream.ErrInvalidArgument)
		}
		identity(out)
	case InitRandom:
		scale := in.Scale
		if scale == 0 {
			scale = 1
		}
		for i := range out {
			out[i] = (rng.Float32()*2 - 1) * scale
		}
	case InitValues:
		if len(in.Values) != n {
			return nil, fmt.Errorf("%w: %d values given, want %d", stream.ErrInvalidArgument, len(in.Values), n)
		}
		copy(out, in.Values)
	default:
		return nil, fmt.Errorf("%w: unknown init %q", stream.ErrInvalidArgument, in.Kind)
	}
	return out, nil
}

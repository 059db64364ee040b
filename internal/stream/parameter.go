package stream

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Parameter is an immutable weight or bias payload with a declared element
// type. The bytes are copied on construction and never handed out mutably.
type Parameter struct {
	dtype DataType
	data  []byte
}

// NewParameter copies data into a parameter of the given type. The byte
// length must be a multiple of the element width.
func NewParameter(dtype DataType, data []byte) (*Parameter, error) {
	size := dtype.Size()
	if size == 0 {
		return nil, fmt.Errorf("%w: parameter type %s", ErrInvalidArgument, dtype)
	}
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of %s elements", ErrInvalidArgument, len(data), dtype)
	}
	return &Parameter{dtype: dtype, data: append([]byte(nil), data...)}, nil
}

// NewFloat32Parameter stores values as little-endian float32.
func NewFloat32Parameter(values []float32) *Parameter {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return &Parameter{dtype: Float32, data: data}
}

// Type returns the element type.
func (p *Parameter) Type() DataType { return p.dtype }

// Len returns the number of elements.
func (p *Parameter) Len() int {
	if size := p.dtype.Size(); size > 0 {
		return len(p.data) / size
	}
	return 0
}

// Bytes returns a copy of the raw payload.
func (p *Parameter) Bytes() []byte { return append([]byte(nil), p.data...) }

// Float32s decodes a float32 parameter.
func (p *Parameter) Float32s() ([]float32, error) {
	if p.dtype != Float32 {
		return nil, fmt.Errorf("%w: parameter is %s, want float32", ErrInvalidArgument, p.dtype)
	}
	out := make([]float32, len(p.data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(p.data[4*i:]))
	}
	return out, nil
}

func (p *Parameter) String() string {
	if p == nil {
		return "{nil}"
	}
	return fmt.Sprintf("{type=%s len=%d}", p.dtype, p.Len())
}

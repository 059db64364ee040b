// Package config reads pipeline descriptions and builds the module tree they
// describe.
//
// A description names the layers in order and how to initialise their
// parameters. It does not load trained weights; initialisers exist for demos,
// benchmarks and tests.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Layer kinds accepted in a description.
const (
	KindConv1d     = "conv1d"
	KindLinear     = "linear"
	KindLayerNorm  = "layernorm"
	KindReLU       = "relu"
	KindIdentity   = "identity"
	KindResidual   = "residual"
	KindSequential = "sequential"
)

// Pipeline is the top-level description document.
type Pipeline struct {
	Name          string  `yaml:"name"`
	InputChannels int     `yaml:"input_channels"`
	ChunkFrames   int     `yaml:"chunk_frames"`
	Seed          uint64  `yaml:"seed"`
	Layers        []Layer `yaml:"layers"`
}

// Layer describes one module. Which fields apply depends on Type.
type Layer struct {
	Type string `yaml:"type"`

	// conv1d
	InChannels  int   `yaml:"in_channels,omitempty"`
	OutChannels int   `yaml:"out_channels,omitempty"`
	KernelSize  int   `yaml:"kernel_size,omitempty"`
	Stride      int   `yaml:"stride,omitempty"`
	Padding     []int `yaml:"padding,omitempty"`
	Groups      int   `yaml:"groups,omitempty"`

	// linear
	InFeatures  int `yaml:"in_features,omitempty"`
	OutFeatures int `yaml:"out_features,omitempty"`

	// layernorm
	FeatureSize int      `yaml:"feature_size,omitempty"`
	Alpha       *float32 `yaml:"alpha,omitempty"`
	Beta        *float32 `yaml:"beta,omitempty"`

	// relu, residual
	DataType string `yaml:"data_type,omitempty"`

	Weights *Init `yaml:"weights,omitempty"`
	Bias    *Init `yaml:"bias,omitempty"`

	// residual, sequential
	Layers []Layer `yaml:"layers,omitempty"`
}

// Parse decodes a description and fills defaults.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}
	if p.ChunkFrames <= 0 {
		p.ChunkFrames = DefaultChunkFrames
	}
	return &p, nil
}

// Load reads and parses a description file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline: %w", err)
	}
	return Parse(data)
}

// DefaultChunkFrames is the chunk size used when a description sets none.
const DefaultChunkFrames = 160

// Marshal renders the description back to YAML.
func (p *Pipeline) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Package stream defines the contract every streaming layer implements and the
// data it exchanges: processing states, parameters, descriptors and errors.
package stream

import "github.com/samcharles93/streamrt/internal/memory"

// Module is one layer of a streaming pipeline.
//
// Start is called once per stream and links the downstream state. Run consumes
// whole units from the input state and appends what it produces to the
// returned state; with less than one unit available it consumes nothing.
// Finish marks end of stream, flushes trailing history and runs once more.
// Clear drops any per-stream cache so the module can start a new stream.
//
// All calls for one stream happen on one goroutine. Modules hold per-stream
// data only in the State chain unless their documentation says otherwise.
type Module interface {
	Start(in *State) (*State, error)
	Run(in *State) (*State, error)
	Finish(in *State) (*State, error)
	Clear()
	SetMemoryManager(m memory.Manager)
	Info() Info
	Describe() Node
	String() string
}

// Shape is the tensor rank a layer expects when exported to a static graph.
type Shape int

const (
	Shape2D Shape = iota
	Shape3D
	ShapePassthrough
)

func (s Shape) String() string {
	switch s {
	case Shape2D:
		return "2d"
	case Shape3D:
		return "3d"
	case ShapePassthrough:
		return "passthrough"
	}
	return "unknown"
}

// Info is the per-layer descriptor consumed by the static-graph export bridge.
type Info struct {
	InShape     Shape `json:"inShape"`
	InChannels  int   `json:"inChannels"`
	OutShape    Shape `json:"outShape"`
	OutChannels int   `json:"outChannels"`
}

// PassthroughInfo describes a layer that keeps whatever shape it receives.
func PassthroughInfo() Info {
	return Info{
		InShape:     ShapePassthrough,
		InChannels:  -1,
		OutShape:    ShapePassthrough,
		OutChannels: -1,
	}
}

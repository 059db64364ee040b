package stream

import (
	"errors"

	"github.com/samcharles93/streamrt/internal/iobuf"
)

var (
	// ErrInvalidArgument reports malformed construction parameters.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOutOfRange reports a consume past the data a buffer holds.
	ErrOutOfRange = iobuf.ErrOutOfRange
	// ErrUnsupported reports an operation with no implementation for a data type.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrNotStarted reports Run or Finish on a pipeline position that was never started.
	ErrNotStarted = errors.New("module not started")
	// ErrLatencyContract reports a wrapped module that produced more frames
	// than the residual branch has seen.
	ErrLatencyContract = errors.New("latency contract violated")
)

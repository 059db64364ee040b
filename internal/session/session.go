// Package session drives one audio stream through a pipeline and enforces the
// start, run, finish lifecycle on behalf of callers.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/streamrt/internal/iobuf"
	"github.com/samcharles93/streamrt/internal/logger"
	"github.com/samcharles93/streamrt/internal/memory"
	"github.com/samcharles93/streamrt/internal/stream"
)

var (
	// ErrFinished is returned by Push and Finish after the stream ended.
	ErrFinished = errors.New("session: stream finished")
	// ErrFailed wraps the layer error that ended a stream. The session stays
	// failed until Reset.
	ErrFailed = errors.New("session: stream failed")
)

// Status is a session's position in the lifecycle.
type Status int

const (
	Idle Status = iota
	Running
	Finished
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Stats counts the samples that went in and came out of a session.
type Stats struct {
	Chunks     int64 `json:"chunks" msgpack:"chunks"`
	SamplesIn  int64 `json:"samples_in" msgpack:"samples_in"`
	SamplesOut int64 `json:"samples_out" msgpack:"samples_out"`
}

// Session owns the state chain of one stream. Its methods are safe to call
// from several goroutines; calls are serialised.
type Session struct {
	mu      sync.Mutex
	id      uuid.UUID
	module  stream.Module
	log     logger.Logger
	in      *stream.State
	out     *stream.State
	status  Status
	err     error
	stats   Stats
	created time.Time
	updated time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; records carry the stream id.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithID fixes the session id instead of generating one.
func WithID(id uuid.UUID) Option {
	return func(s *Session) { s.id = id }
}

// WithMemoryManager installs a workspace allocator on the whole module tree.
func WithMemoryManager(m memory.Manager) Option {
	return func(s *Session) { s.module.SetMemoryManager(m) }
}

// New wraps m. The module tree must not be shared with another live session
// unless every layer in it is safe for concurrent streams.
func New(m stream.Module, opts ...Option) *Session {
	now := time.Now()
	s := &Session{
		id:      uuid.New(),
		module:  m,
		log:     logger.Discard(),
		in:      stream.NewState(1),
		created: now,
		updated: now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.ForStream(s.log, s.id.String())
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

// Module returns the pipeline the session drives.
func (s *Session) Module() stream.Module { return s.module }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// UpdatedAt reports the last time the session did work.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// Start links the state chain. Push starts the session implicitly.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Session) startLocked() error {
	switch s.status {
	case Running:
		return nil
	case Finished:
		return ErrFinished
	case Failed:
		return fmt.Errorf("%w: %w", ErrFailed, s.err)
	}
	out, err := s.module.Start(s.in)
	if err != nil {
		return s.fail("start", err)
	}
	s.out = out
	s.status = Running
	s.log.Debug("stream started", "pipeline", s.module.Describe().Name)
	return nil
}

// Push feeds samples into the pipeline and returns whatever output frames
// became available. Samples need not align with frame boundaries.
func (s *Session) Push(samples []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startLocked(); err != nil {
		return nil, err
	}
	iobuf.Write(s.in.Buffer(0), samples)
	s.stats.Chunks++
	s.stats.SamplesIn += int64(len(samples))
	out, err := s.module.Run(s.in)
	if err != nil {
		return nil, s.fail("run", err)
	}
	return s.collect(out), nil
}

// Finish flushes trailing history and ends the stream.
func (s *Session) Finish() ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.startLocked(); err != nil {
		return nil, err
	}
	out, err := s.module.Finish(s.in)
	if err != nil {
		return nil, s.fail("finish", err)
	}
	res := s.collect(out)
	s.status = Finished
	s.log.Debug("stream finished", "samples_in", s.stats.SamplesIn, "samples_out", s.stats.SamplesOut)
	return res, nil
}

// Reset clears module caches and replaces the state chain so the session can
// carry a new stream. The id is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.module.Clear()
	s.in = stream.NewState(1)
	s.out = nil
	s.status = Idle
	s.err = nil
	s.stats = Stats{}
	s.updated = time.Now()
	s.log.Debug("stream reset")
}

func (s *Session) collect(out *stream.State) []float32 {
	s.updated = time.Now()
	if out == nil || out.Len() == 0 {
		return nil
	}
	s.out = out
	b := out.Buffer(0)
	n := iobuf.Size[float32](b)
	if n == 0 {
		return nil
	}
	res := append([]float32(nil), iobuf.Data[float32](b)[:n]...)
	// cannot fail: n is what the buffer holds
	_ = iobuf.Consume[float32](b, n)
	s.stats.SamplesOut += int64(n)
	return res
}

func (s *Session) fail(phase string, err error) error {
	s.status = Failed
	s.err = fmt.Errorf("%s: %w", phase, err)
	s.updated = time.Now()
	s.log.Warn("stream failed", "phase", phase, "err", err)
	return fmt.Errorf("%w: %w", ErrFailed, s.err)
}

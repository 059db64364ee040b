// Package api exposes streaming sessions over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/streamrt/internal/logger"
	"github.com/samcharles93/streamrt/internal/memory"
	"github.com/samcharles93/streamrt/internal/session"
	"github.com/samcharles93/streamrt/internal/stream"
	"github.com/samcharles93/streamrt/internal/version"
)

// Factory builds a fresh module tree for one stream.
type Factory func() (stream.Module, error)

type Server struct {
	factory     Factory
	store       *StreamStore
	log         logger.Logger
	mm          memory.Manager
	clock       func() time.Time
	description stream.Node
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithMemoryManager shares one workspace allocator across all streams. The
// manager must be safe for concurrent use.
func WithMemoryManager(m memory.Manager) ServerOption {
	return func(s *Server) { s.mm = m }
}

// WithMaxStreams caps the number of live streams.
func WithMaxStreams(n int) ServerOption {
	return func(s *Server) { s.store = NewStreamStore(n) }
}

// NewServer builds one pipeline up front to validate the factory and cache
// its description.
func NewServer(factory Factory, opts ...ServerOption) (*Server, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", stream.ErrInvalidArgument)
	}
	m, err := factory()
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	s := &Server{
		factory:     factory,
		store:       NewStreamStore(0),
		log:         logger.Discard(),
		clock:       time.Now,
		description: stream.DescribePipeline(m),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store exposes the live streams.
func (s *Server) Store() *StreamStore { return s.store }

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)
	e.GET("/v1/pipeline", s.handlePipeline)
	e.POST("/v1/streams", s.handleCreateStream)
	e.GET("/v1/streams/:id", s.handleGetStream)
	e.POST("/v1/streams/:id/chunks", s.handleChunk)
	e.POST("/v1/streams/:id/finish", s.handleFinish)
	e.POST("/v1/streams/:id/reset", s.handleReset)
	e.DELETE("/v1/streams/:id", s.handleDeleteStream)
}

// RunJanitor drops streams idle for longer than idle, checking every period,
// until ctx is done.
func (s *Server) RunJanitor(ctx context.Context, period, idle time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.store.Sweep(s.clock().Add(-idle)); n > 0 {
				s.log.Info("evicted idle streams", "count", n, "live", s.store.Len())
			}
		}
	}
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Resolve(),
		"streams": s.store.Len(),
	})
}

func (s *Server) handlePipeline(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.description)
}

func (s *Server) handleCreateStream(c *echo.Context) error {
	m, err := s.factory()
	if err != nil {
		return s.writeErr(c, err)
	}
	opts := []session.Option{session.WithLogger(s.log)}
	if s.mm != nil {
		opts = append(opts, session.WithMemoryManager(s.mm))
	}
	sess := session.New(m, opts...)
	if err := sess.Start(); err != nil {
		return s.writeErr(c, err)
	}
	now := s.clock()
	if err := s.store.Add(sess, now); err != nil {
		return s.writeErr(c, err)
	}
	s.log.Info("stream opened", logger.StreamKey, sess.ID().String(), "live", s.store.Len())
	return write(c, http.StatusCreated, streamResponse(sess, now))
}

func (s *Server) handleGetStream(c *echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return s.writeErr(c, ErrStreamNotFound)
	}
	return write(c, http.StatusOK, streamResponse(rec.session, rec.createdAt))
}

func (s *Server) handleChunk(c *echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return s.writeErr(c, ErrStreamNotFound)
	}
	req, err := decodeBody[ChunkRequest](c, false)
	if err != nil {
		return s.writeErr(c, err)
	}
	out, err := rec.session.Push(req.Samples)
	if err != nil {
		return s.writeErr(c, err)
	}
	return write(c, http.StatusOK, chunkResponse(rec.session, out))
}

// handleFinish accepts an optional last chunk before flushing the stream.
func (s *Server) handleFinish(c *echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return s.writeErr(c, ErrStreamNotFound)
	}
	req, err := decodeBody[ChunkRequest](c, true)
	if err != nil {
		return s.writeErr(c, err)
	}
	var out []float32
	if len(req.Samples) > 0 {
		if out, err = rec.session.Push(req.Samples); err != nil {
			return s.writeErr(c, err)
		}
	}
	tail, err := rec.session.Finish()
	if err != nil {
		return s.writeErr(c, err)
	}
	return write(c, http.StatusOK, chunkResponse(rec.session, append(out, tail...)))
}

func (s *Server) handleReset(c *echo.Context) error {
	rec, ok := s.store.Get(c.Param("id"))
	if !ok {
		return s.writeErr(c, ErrStreamNotFound)
	}
	rec.session.Reset()
	if err := rec.session.Start(); err != nil {
		return s.writeErr(c, err)
	}
	return write(c, http.StatusOK, streamResponse(rec.session, rec.createdAt))
}

func (s *Server) handleDeleteStream(c *echo.Context) error {
	id := c.Param("id")
	if !s.store.Delete(id) {
		return s.writeErr(c, ErrStreamNotFound)
	}
	s.log.Info("stream closed", logger.StreamKey, id, "live", s.store.Len())
	return write(c, http.StatusOK, map[string]any{
		"id":      id,
		"object":  "stream.deleted",
		"deleted": true,
	})
}

func (s *Server) writeErr(c *echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrStreamNotFound):
		return writeNotFound(c, "stream not found")
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, stream.ErrInvalidArgument),
		errors.Is(err, session.ErrFinished):
		return writeBadRequest(c, err.Error())
	case errors.Is(err, ErrTooManyStreams):
		return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many live streams", "too_many_streams")
	}
	s.log.Error("request failed", "path", c.Request().URL.Path, "err", err)
	return writeError(c, http.StatusInternalServerError, "server_error", err.Error(), "")
}

func streamResponse(sess *session.Session, created time.Time) StreamResponse {
	resp := StreamResponse{
		ID:        sess.ID().String(),
		Object:    "stream",
		Status:    sess.Status().String(),
		CreatedAt: created.Unix(),
		Stats:     sess.Stats(),
	}
	if err := sess.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func chunkResponse(sess *session.Session, out []float32) ChunkResponse {
	if out == nil {
		out = []float32{}
	}
	return ChunkResponse{
		ID:      sess.ID().String(),
		Status:  sess.Status().String(),
		Samples: out,
		Stats:   sess.Stats(),
	}
}

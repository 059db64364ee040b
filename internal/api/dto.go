package api

import "github.com/samcharles93/streamrt/internal/session"

// ChunkRequest carries interleaved samples for one stream.
type ChunkRequest struct {
	Samples []float32 `json:"samples" msgpack:"samples"`
}

// ChunkResponse returns the frames a chunk or a finish produced.
type ChunkResponse struct {
	ID      string        `json:"id" msgpack:"id"`
	Status  string        `json:"status" msgpack:"status"`
	Samples []float32     `json:"samples" msgpack:"samples"`
	Stats   session.Stats `json:"stats" msgpack:"stats"`
}

// StreamResponse describes a stream.
type StreamResponse struct {
	ID        string        `json:"id" msgpack:"id"`
	Object    string        `json:"object" msgpack:"object"`
	Status    string        `json:"status" msgpack:"status"`
	CreatedAt int64         `json:"created_at" msgpack:"created_at"`
	Stats     session.Stats `json:"stats" msgpack:"stats"`
	Error     string        `json:"error,omitempty" msgpack:"error,omitempty"`
}

// ResponseError is the body of every failed request.
type ResponseError struct {
	Message string `json:"message" msgpack:"message"`
	Type    string `json:"type" msgpack:"type"`
	Code    string `json:"code,omitempty" msgpack:"code,omitempty"`
}

type errorEnvelope struct {
	Error ResponseError `json:"error" msgpack:"error"`
}

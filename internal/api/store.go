package api

import (
	"sync"
	"time"

	"github.com/samcharles93/streamrt/internal/session"
)

type streamRecord struct {
	session   *session.Session
	createdAt time.Time
}

// StreamStore holds the live sessions of a server.
type StreamStore struct {
	mu      sync.Mutex
	streams map[string]*streamRecord
	limit   int
}

// NewStreamStore returns a store admitting at most limit live streams; a
// non-positive limit means no limit.
func NewStreamStore(limit int) *StreamStore {
	return &StreamStore{
		streams: make(map[string]*streamRecord),
		limit:   limit,
	}
}

func (s *StreamStore) Add(sess *session.Session, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.streams) >= s.limit {
		return ErrTooManyStreams
	}
	s.streams[sess.ID().String()] = &streamRecord{session: sess, createdAt: now}
	return nil
}

func (s *StreamStore) Get(id string) (*streamRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.streams[id]
	return rec, ok
}

func (s *StreamStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.streams[id]; !ok {
		return false
	}
	delete(s.streams, id)
	return true
}

func (s *StreamStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Sweep drops sessions idle since before cutoff and returns how many went.
func (s *StreamStore) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, rec := range s.streams {
		if rec.session.UpdatedAt().Before(cutoff) {
			delete(s.streams, id)
			n++
		}
	}
	return n
}

package store

import (
	"context"
	"sync"
	"time"

	"github.com/mycvconnect/mhire/internal/mhire/model"
)

const sweepEvery = 1024

type memSession struct {
	turns   []model.Turn
	touched time.Time
}

// MemorySessionStore keeps sessions in process memory. Sessions idle for
// longer than ttl are dropped lazily.
type MemorySessionStore struct {
	ttl      time.Duration
	maxTurns int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*memSession
	appends  int
}

// NewMemorySessionStore creates a store. ttl <= 0 keeps sessions forever
// and maxTurns <= 0 keeps every turn.
func NewMemorySessionStore(ttl time.Duration, maxTurns int) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		maxTurns: maxTurns,
		now:      time.Now,
		sessions: make(map[string]*memSession),
	}
}

func (s *MemorySessionStore) expired(sess *memSession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.touched) > s.ttl
}

// Load returns a copy of the session's turns.
func (s *MemorySessionStore) Load(_ context.Context, sessionID string) ([]model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if s.expired(sess, s.now()) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	out := make([]model.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out, nil
}

// Append adds turns under the store lock.
func (s *MemorySessionStore) Append(_ context.Context, sessionID string, turns ...model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, now) {
		sess = &memSession{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turns...)
	if limit := s.maxTurns * 2; s.maxTurns > 0 && len(sess.turns) > limit {
		sess.turns = append([]model.Turn(nil), sess.turns[len(sess.turns)-limit:]...)
	}
	sess.touched = now

	s.appends++
	if s.ttl > 0 && s.appends%sweepEvery == 0 {
		for id, other := range s.sessions {
			if s.expired(other, now) {
				delete(s.sessions, id)
			}
		}
	}
	return nil
}

// Len returns the number of live sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

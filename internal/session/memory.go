package session

import (
	"context"
	"sync"
	"time"

	"gwi.com/verbal-diary/internal/core"
)

// MemoryStore keeps registration sessions in process memory. Sessions older
// than ttl are treated as absent.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]core.RegistrationSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]core.RegistrationSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, chatID int64) (*core.RegistrationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, core.ErrNoSession
	}
	if s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, chatID)
		return nil, core.ErrNoSession
	}
	return &sess, nil
}

func (s *MemoryStore) Save(_ context.Context, sess *core.RegistrationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ChatID] = *sess
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, chatID)
	return nil
}

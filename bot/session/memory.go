package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/staffline/types"
)

// MemoryStore is an in-memory implementation of Store.
// Sessions are lost on restart, which matches the engine's contract; a
// janitor drops conversations abandoned longer than the configured TTL.
type MemoryStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	closed   bool
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(cfg Config) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      cfg.TTL,
		stop:     make(chan struct{}),
	}

	if cfg.TTL > 0 {
		go s.janitorLoop(cfg.TTL / 4)
	}

	return s
}

// Get returns the user's session or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	sess, ok := s.sessions[userID]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(sess, time.Now()) {
		return nil, ErrNotFound
	}

	out := *sess
	return &out, nil
}

// Start creates a fresh session, overwriting any existing one.
func (s *MemoryStore) Start(ctx context.Context, userID string, workflow types.Workflow) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Workflow:  workflow,
		StartedAt: time.Now(),
	}
	s.sessions[userID] = sess

	out := *sess
	return &out, nil
}

// Clear removes the user's session. Idempotent.
func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.sessions, userID)
	return nil
}

// Ping reports whether the store is usable.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close stops the janitor and marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// expired reports whether the session passed the idle TTL.
func (s *MemoryStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.StartedAt) > s.ttl
}

// janitorLoop periodically drops expired sessions.
func (s *MemoryStore) janitorLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired(time.Now())
		}
	}
}

// evictExpired removes every session past the TTL.
func (s *MemoryStore) evictExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	for userID, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, userID)
		}
	}
}

// Len reports how many sessions are currently stored, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

package auth

import (
	"context"
	"sync"
	"time"
)

// NewInMemorySessionStore returns a SessionStore backed by an in-memory map.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]Session), now: time.Now}
}

// InMemorySessionStore implements SessionStore for tests and local development.
// Expired sessions are treated as absent.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func (s *InMemorySessionStore) live(session Session) bool {
	return session.ExpiresAt.After(s.now())
}

// Save replaces the session stored for the user.
func (s *InMemorySessionStore) Save(_ context.Context, session Session) error {
	s.mu.Lock()
	s.sessions[session.UserID] = session
	s.mu.Unlock()
	return nil
}

// Find retrieves the session of a user.
func (s *InMemorySessionStore) Find(_ context.Context, userID string) (Session, error) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok || !s.live(session) {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// Swap replaces the session if the stored hash still matches previousHash.
func (s *InMemorySessionStore) Swap(_ context.Context, previousHash string, next Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[next.UserID]
	if !ok || current.TokenHash != previousHash || !s.live(current) {
		return ErrSessionNotFound
	}
	s.sessions[next.UserID] = next
	return nil
}

// Delete removes the session of a user.
func (s *InMemorySessionStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[userID]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, userID)
	return nil
}

// Has reports whether a user has a session. Useful for tests.
func (s *InMemorySessionStore) Has(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[userID]
	return ok
}

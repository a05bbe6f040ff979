// Package memory provides process-local implementations of the storage
// ports, used by tests and by the session API when no database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/tlobni/session-core/internal/core/ports"
)

// SessionStore keeps the session token for the lifetime of the process.
type SessionStore struct {
	mu    sync.RWMutex
	token string
	ok    bool
}

var _ ports.SessionStore = (*SessionStore)(nil)

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) Get(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.ok, nil
}

func (s *SessionStore) Set(_ context.Context, token string) error {
	s.mu.Lock()
	s.token, s.ok = token, true
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.token, s.ok = "", false
	s.mu.Unlock()
	return nil
}

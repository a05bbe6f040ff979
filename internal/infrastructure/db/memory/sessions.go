package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

type expiring struct {
	userID  int64
	expires time.Time
}

func (e expiring) live(now time.Time) bool {
	return e.expires.IsZero() || now.Before(e.expires)
}

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// SessionRegistry holds server-side sessions in a map. Expired entries are
// dropped lazily on lookup.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]expiring
	now      func() time.Time
}

var _ ports.SessionRegistry = (*SessionRegistry)(nil)

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]expiring), now: time.Now}
}

func (r *SessionRegistry) Create(_ context.Context, userID int64, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	r.mu.Lock()
	r.sessions[sid] = expiring{userID: userID, expires: deadline(r.now(), ttl)}
	r.mu.Unlock()
	return sid, nil
}

func (r *SessionRegistry) Lookup(_ context.Context, sid string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sid]
	if !ok {
		return 0, domain.ErrSessionNotFound
	}
	if !s.live(r.now()) {
		delete(r.sessions, sid)
		return 0, domain.ErrSessionNotFound
	}
	return s.userID, nil
}

func (r *SessionRegistry) Revoke(_ context.Context, sid string) error {
	r.mu.Lock()
	delete(r.sessions, sid)
	r.mu.Unlock()
	return nil
}

// ResetTokenStore holds single-use reset tokens in a map.
type ResetTokenStore struct {
	mu     sync.Mutex
	tokens map[string]expiring
	now    func() time.Time
}

var _ ports.ResetTokenStore = (*ResetTokenStore)(nil)

func NewResetTokenStore() *ResetTokenStore {
	return &ResetTokenStore{tokens: make(map[string]expiring), now: time.Now}
}

func (s *ResetTokenStore) Issue(_ context.Context, userID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = expiring{userID: userID, expires: deadline(s.now(), ttl)}
	s.mu.Unlock()
	return token, nil
}

func (s *ResetTokenStore) Consume(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	delete(s.tokens, token)
	if !ok || !t.live(s.now()) {
		return 0, domain.ErrResetTokenInvalid
	}
	return t.userID, nil
}

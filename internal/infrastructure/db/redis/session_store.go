package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

// SessionStore keeps the client's session token in Redis.
// Key format: session:token:<device_id>
type SessionStore struct {
	client *redis.Client
	device string
	ttl    time.Duration
}

var _ ports.SessionStore = (*SessionStore)(nil)

// NewSessionStore scopes the token to deviceID. A zero ttl keeps it until
// cleared.
func NewSessionStore(client *redis.Client, deviceID string, ttl time.Duration) *SessionStore {
	if deviceID == "" {
		deviceID = "default"
	}
	return &SessionStore{client: client, device: deviceID, ttl: ttl}
}

func (s *SessionStore) Get(ctx context.Context) (string, bool, error) {
	token, err := s.client.Get(ctx, s.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &domain.StorageError{Op: "get", Err: err}
	}
	return token, true, nil
}

func (s *SessionStore) Set(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key(), token, s.ttl).Err(); err != nil {
		return &domain.StorageError{Op: "set", Err: err}
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key()).Err(); err != nil {
		return &domain.StorageError{Op: "clear", Err: err}
	}
	return nil
}

func (s *SessionStore) key() string {
	return "session:token:" + s.device
}

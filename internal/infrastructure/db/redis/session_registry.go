package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

// SessionRegistry tracks live server-side sessions.
// Key format: session:sid:<uuid> -> user id
type SessionRegistry struct {
	client *redis.Client
}

var _ ports.SessionRegistry = (*SessionRegistry)(nil)

func NewSessionRegistry(client *redis.Client) *SessionRegistry {
	return &SessionRegistry{client: client}
}

func (r *SessionRegistry) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	if err := r.client.Set(ctx, sessionKey(sid), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sid, nil
}

func (r *SessionRegistry) Lookup(ctx context.Context, sid string) (int64, error) {
	raw, err := r.client.Get(ctx, sessionKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("lookup session: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("lookup session: %w", err)
	}
	return id, nil
}

func (r *SessionRegistry) Revoke(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func sessionKey(sid string) string {
	return "session:sid:" + sid
}

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

// ResetTokenStore issues single-use password reset tokens.
// Key format: reset:<token> -> user id, expiring after the ttl given to Issue.
type ResetTokenStore struct {
	client *redis.Client
}

var _ ports.ResetTokenStore = (*ResetTokenStore)(nil)

func NewResetTokenStore(client *redis.Client) *ResetTokenStore {
	return &ResetTokenStore{client: client}
}

func (s *ResetTokenStore) Issue(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, resetKey(token), userID, ttl).Err(); err != nil {
		return "", fmt.Errorf("issue reset token: %w", err)
	}
	return token, nil
}

// Consume returns the owner of token and deletes it in the same round trip,
// so a token can be redeemed once.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (int64, error) {
	raw, err := s.client.GetDel(ctx, resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrResetTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	return id, nil
}

func resetKey(token string) string {
	return "reset:" + token
}

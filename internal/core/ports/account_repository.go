package ports

import (
	"context"
	"time"

	"github.com/tlobni/session-core/internal/core/domain"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	// Create stores account and returns it with its assigned ID.
	// A taken email or username yields domain.ErrUserExists.
	Create(ctx context.Context, account *domain.Account) (*domain.Account, error)
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	UpdatePassword(ctx context.Context, id int64, hash string) error
}

// SessionRegistry tracks server-side sessions by opaque id.
type SessionRegistry interface {
	Create(ctx context.Context, userID int64, ttl time.Duration) (sid string, err error)
	// Lookup yields domain.ErrSessionNotFound for unknown or expired ids.
	Lookup(ctx context.Context, sid string) (userID int64, err error)
	Revoke(ctx context.Context, sid string) error
}

// ResetTokenStore issues single-use password reset tokens.
type ResetTokenStore interface {
	Issue(ctx context.Context, userID int64, ttl time.Duration) (token string, err error)
	// Consume yields domain.ErrResetTokenInvalid for unknown, used or expired tokens.
	Consume(ctx context.Context, token string) (userID int64, err error)
}

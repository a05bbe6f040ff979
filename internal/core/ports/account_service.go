package ports

import (
	"context"

	"github.com/tlobni/session-core/internal/core/domain"
)

// ResetNotice is a password reset link waiting to be delivered.
type ResetNotice struct {
	Email string
	Name  string
	Token string
}

// Notifier queues reset notices for delivery. Enqueue must not block on delivery.
type Notifier interface {
	Enqueue(notice ResetNotice)
}

// ResetNoticeSender delivers a single notice.
type ResetNoticeSender interface {
	Send(ctx context.Context, notice ResetNotice) error
}

// AccountService is the server side of the session API.
type AccountService interface {
	// Register and Login return the signed session cookie value and the user.
	Register(ctx context.Context, in RegisterInput) (string, *domain.User, error)
	Login(ctx context.Context, email, password string) (string, *domain.User, error)
	// Authenticate resolves a session cookie value to its user and session id.
	Authenticate(ctx context.Context, token string) (*domain.User, string, error)
	Logout(ctx context.Context, sid string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

package ports

import (
	"context"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/identity"
)

// LoginInput carries the credentials for POST /login.
type LoginInput struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterInput carries the fields for POST /register.
type RegisterInput struct {
	Username string      `json:"username" validate:"required"`
	Email    string      `json:"email"    validate:"required,email"`
	Password string      `json:"password" validate:"required"`
	FullName string      `json:"fullName" validate:"required"`
	Role     domain.Role `json:"role"     validate:"required"`
}

// ForgotPasswordInput carries the address for POST /forgot-password.
type ForgotPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordInput carries the fields for POST /reset-password.
type ResetPasswordInput struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthController is the surface the UI layer consumes.
type AuthController interface {
	Bootstrap(ctx context.Context) (domain.State, error)
	Login(ctx context.Context, in LoginInput) (*domain.User, error)
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (domain.State, error)
	CurrentUser(ctx context.Context) (*domain.User, error)
	State() domain.State
	Subscribe(observer identity.Observer) (unsubscribe func())

	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

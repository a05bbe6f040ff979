package ports

import "context"

// SessionStore persists the opaque session token across process restarts.
// Failures are returned as *domain.StorageError. Clearing an absent token
// is not an error.
type SessionStore interface {
	Get(ctx context.Context) (token string, ok bool, err error)
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

package ports

import "context"

// Transport performs JSON requests against the session API. Implementations
// forward the session cookie on every call and return *domain.APIError on
// any failure.
type Transport interface {
	// Request sends body (when non-nil) to path, relative to the configured
	// base address, and decodes a 2xx response into out (when non-nil).
	Request(ctx context.Context, method, path string, body, out any) error

	// SessionToken returns the session cookie currently held for the API origin.
	SessionToken() (string, bool)
	// SetSessionToken seeds the cookie jar with a previously persisted token.
	SetSessionToken(token string)
	// ClearSession drops every cookie held for the API.
	ClearSession()
}

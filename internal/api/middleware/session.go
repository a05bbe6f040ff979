package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

// Context keys set by Session.
const (
	UserKey      = "user"
	SessionIDKey = "sid"
)

// Session resolves the session cookie to a user and injects it into the
// context. Requests without a live session get 401.
func Session(accounts ports.AccountService, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ck, err := c.Cookie(cookieName)
			if err != nil || ck.Value == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}

			user, sid, err := accounts.Authenticate(c.Request().Context(), ck.Value)
			if errors.Is(err, domain.ErrUnauthenticated) {
				return echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
			}
			if err != nil {
				return err
			}

			c.Set(UserKey, user)
			c.Set(SessionIDKey, sid)

			return next(c)
		}
	}
}

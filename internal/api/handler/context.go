package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tlobni/session-core/internal/api/middleware"
	"github.com/tlobni/session-core/internal/core/domain"
)

// ctxUser returns the user injected by the Session middleware. Its absence
// means the route was mounted without the middleware.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, ok := c.Get(middleware.UserKey).(*domain.User)
	if !ok || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Not authenticated")
	}
	return user, nil
}

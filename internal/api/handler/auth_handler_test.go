package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/tlobni/session-core/internal/api/middleware"
	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

type stubAccountService struct {
	registerFn     func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error)
	loginFn        func(ctx context.Context, email, password string) (string, *domain.User, error)
	authenticateFn func(ctx context.Context, token string) (*domain.User, string, error)
	logoutFn       func(ctx context.Context, sid string) error
	forgotFn       func(ctx context.Context, email string) error
	resetFn        func(ctx context.Context, token, password string) error
}

func (s *stubAccountService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAccountService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAccountService) Authenticate(ctx context.Context, token string) (*domain.User, string, error) {
	return s.authenticateFn(ctx, token)
}

func (s *stubAccountService) Logout(ctx context.Context, sid string) error {
	return s.logoutFn(ctx, sid)
}

func (s *stubAccountService) RequestPasswordReset(ctx context.Context, email string) error {
	return s.forgotFn(ctx, email)
}

func (s *stubAccountService) ResetPassword(ctx context.Context, token, password string) error {
	return s.resetFn(ctx, token, password)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func newJSONRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newHandler(stub *stubAccountService) *AuthHandler {
	return NewAuthHandler(stub, CookieConfig{Name: "connect.sid"}, zerolog.Nop())
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "connect.sid" {
			return ck
		}
	}
	return nil
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
			if in.Username != "amira" || in.Role != domain.RoleClient || in.FullName != "Amira K." {
				t.Fatalf("unexpected args: %+v", in)
			}
			return "signed", &domain.User{ID: 1, Email: in.Email, Username: in.Username, FullName: in.FullName, Role: in.Role}, nil
		},
	}
	handler := newHandler(stub)

	body := `{"username":"amira","email":"amira@mail.com","password":"123456","fullName":"Amira K.","role":"client"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/register", body), rec)

	if err := handler.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var user map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if user["username"] != "amira" || user["role"] != "client" || user["fullName"] != "Amira K." {
		t.Fatalf("unexpected user payload: %+v", user)
	}

	ck := sessionCookie(rec)
	if ck == nil || ck.Value != "signed" || !ck.HttpOnly {
		t.Fatalf("expected http-only session cookie, got %+v", ck)
	}
}

func TestAuthHandler_Register_ServiceErrorPropagates(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
			return "", nil, domain.ErrUserExists
		},
	}
	handler := newHandler(stub)

	body := `{"username":"amira","email":"amira@mail.com","password":"123456","fullName":"Amira K.","role":"client"}`
	rec := httptest.NewRecorder()
	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/register", body), rec)

	if err := handler.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if sessionCookie(rec) != nil {
		t.Fatalf("no cookie expected on failure")
	}
}

func TestAuthHandler_Register_InvalidPayload(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
			t.Fatalf("should not be called")
			return "", nil, nil
		},
	}
	handler := newHandler(stub)

	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/register", "not-json"), httptest.NewRecorder())
	err := handler.Register(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}

	c = e.NewContext(newJSONRequest(http.MethodPost, "/api/register", `{"username":"amira"}`), httptest.NewRecorder())
	if err := handler.Register(c); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		loginFn: func(ctx context.Context, email, password string) (string, *domain.User, error) {
			if email != "amira@mail.com" || password != "123456" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			return "token123", &domain.User{ID: 1, Username: "amira", Role: domain.RoleClient}, nil
		},
	}
	handler := newHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/login", `{"email":"amira@mail.com","password":"123456"}`), rec)

	if err := handler.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var user map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if user["username"] != "amira" || user["role"] != "client" {
		t.Fatalf("unexpected user payload: %+v", user)
	}
	if _, leaked := user["token"]; leaked {
		t.Fatalf("token must travel in the cookie only")
	}
	if ck := sessionCookie(rec); ck == nil || ck.Value != "token123" {
		t.Fatalf("expected session cookie, got %+v", ck)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		loginFn: func(ctx context.Context, email, password string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	}
	handler := newHandler(stub)

	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/login", `{"email":"amira@mail.com","password":"bad"}`), httptest.NewRecorder())
	if err := handler.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthHandler_Login_InvalidPayload(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		loginFn: func(ctx context.Context, email, password string) (string, *domain.User, error) {
			t.Fatalf("should not be called")
			return "", nil, nil
		},
	}
	handler := newHandler(stub)

	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/login", "{"), httptest.NewRecorder())
	err := handler.Login(c)

	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	e := newEcho()
	handler := newHandler(&stubAccountService{})

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/user", nil), rec)
	c.Set(middleware.UserKey, &domain.User{ID: 1, Username: "amira", Role: domain.RoleClient})

	if err := handler.Me(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"username":"amira"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/api/user", nil), httptest.NewRecorder())
	var he *echo.HTTPError
	if err := handler.Me(c); !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %v", err)
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEcho()
	revoked := ""
	stub := &stubAccountService{
		authenticateFn: func(ctx context.Context, token string) (*domain.User, string, error) {
			if token != "good" {
				return nil, "", domain.ErrUnauthenticated
			}
			return &domain.User{ID: 1}, "sid-1", nil
		},
		logoutFn: func(ctx context.Context, sid string) error {
			revoked = sid
			return nil
		},
	}
	handler := newHandler(stub)

	for _, cookie := range []string{"good", "stale", ""} {
		req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "connect.sid", Value: cookie})
		}
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler.Logout(c); err != nil {
			t.Fatalf("cookie %q: handler error: %v", cookie, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("cookie %q: expected 200, got %d", cookie, rec.Code)
		}
		if ck := sessionCookie(rec); ck == nil || ck.MaxAge >= 0 {
			t.Fatalf("cookie %q: expected cookie to be expired, got %+v", cookie, ck)
		}
	}
	if revoked != "sid-1" {
		t.Fatalf("expected sid-1 revoked, got %q", revoked)
	}
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	e := newEcho()
	requested := ""
	stub := &stubAccountService{
		forgotFn: func(ctx context.Context, email string) error {
			requested = email
			return nil
		},
	}
	handler := newHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/forgot-password", `{"email":"amira@mail.com"}`), rec)
	if err := handler.ForgotPassword(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || requested != "amira@mail.com" {
		t.Fatalf("unexpected result %d %q", rec.Code, requested)
	}

	c = e.NewContext(newJSONRequest(http.MethodPost, "/api/forgot-password", `{"email":"nope"}`), httptest.NewRecorder())
	if err := handler.ForgotPassword(c); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAuthHandler_ResetPassword(t *testing.T) {
	e := newEcho()
	stub := &stubAccountService{
		resetFn: func(ctx context.Context, token, password string) error {
			if token != "tok" {
				return domain.ErrResetTokenInvalid
			}
			return nil
		},
	}
	handler := newHandler(stub)

	rec := httptest.NewRecorder()
	c := e.NewContext(newJSONRequest(http.MethodPost, "/api/reset-password", `{"token":"tok","password":"654321"}`), rec)
	if err := handler.ResetPassword(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("expected success, got %v %d", err, rec.Code)
	}

	c = e.NewContext(newJSONRequest(http.MethodPost, "/api/reset-password", `{"token":"tok","password":"123"}`), httptest.NewRecorder())
	if err := handler.ResetPassword(c); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected short password rejected, got %v", err)
	}

	c = e.NewContext(newJSONRequest(http.MethodPost, "/api/reset-password", `{"token":"other","password":"654321"}`), httptest.NewRecorder())
	if err := handler.ResetPassword(c); !errors.Is(err, domain.ErrResetTokenInvalid) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/identity"
	"github.com/tlobni/session-core/internal/core/ports"
	"github.com/tlobni/session-core/internal/metrics"
	"github.com/tlobni/session-core/internal/pkg/validation"
)

const (
	pathUser           = "/user"
	pathLogin          = "/login"
	pathRegister       = "/register"
	pathLogout         = "/logout"
	pathForgotPassword = "/forgot-password"
	pathResetPassword  = "/reset-password"
)

// AuthController drives the client session lifecycle. It is the only writer
// of its identity cache.
type AuthController struct {
	transport ports.Transport
	store     ports.SessionStore
	cache     *identity.Cache
	validate  *validation.Validator
	log       zerolog.Logger

	// sessionMu serializes changes to the jar and the persisted token.
	// establishing counts logins and registrations in flight; while any is
	// running a refresh must not discard the session.
	sessionMu    sync.Mutex
	establishing int
}

var _ ports.AuthController = (*AuthController)(nil)

func NewAuthController(transport ports.Transport, store ports.SessionStore, cache *identity.Cache, log zerolog.Logger) *AuthController {
	if cache == nil {
		cache = identity.New()
	}
	return &AuthController{
		transport: transport,
		store:     store,
		cache:     cache,
		validate:  validation.New(),
		log:       log,
	}
}

// Bootstrap resolves the identity at startup. A persisted token is seeded
// into the transport first; the who-am-I call is issued either way. A 401
// resolves to Anonymous without error.
func (c *AuthController) Bootstrap(ctx context.Context) (domain.State, error) {
	token, ok, storeErr := c.store.Get(ctx)
	switch {
	case storeErr != nil:
		c.log.Error().Err(storeErr).Msg("read persisted session token")
	case ok:
		c.sessionMu.Lock()
		if c.establishing == 0 {
			c.transport.SetSessionToken(token)
		}
		c.sessionMu.Unlock()
	}

	state, err := c.Refresh(ctx)
	if err != nil {
		return state, err
	}
	return state, storeErr
}

// Refresh re-fetches the current user. Concurrent refreshes share one call.
// The stored session is dropped only when this call's absent result was
// applied and no login or registration is in flight.
func (c *AuthController) Refresh(ctx context.Context) (domain.State, error) {
	entry, outcome, err := c.cache.Fetch(ctx, c.fetchUser)
	if err != nil {
		return entry.State(), err
	}
	if outcome != identity.OutcomeAbsent {
		return entry.State(), nil
	}

	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.establishing > 0 {
		c.log.Debug().Msg("session rejected while a login is in flight, keeping it")
		return c.cache.Read().State(), nil
	}

	c.transport.ClearSession()
	if err := c.store.Clear(ctx); err != nil {
		c.log.Error().Err(err).Msg("clear rejected session token")
		return c.cache.Read().State(), err
	}
	return c.cache.Read().State(), nil
}

func (c *AuthController) fetchUser(ctx context.Context) (*domain.User, error) {
	var user *domain.User
	err := c.transport.Request(ctx, http.MethodGet, pathUser, nil, &user)
	if errors.Is(err, domain.ErrUnauthenticated) {
		metrics.SessionTransitionsTotal.WithLabelValues(domain.StateAnonymous.String()).Inc()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if user == nil {
		metrics.SessionTransitionsTotal.WithLabelValues(domain.StateAnonymous.String()).Inc()
		return nil, nil
	}
	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("user payload: %w", err)
	}
	metrics.SessionTransitionsTotal.WithLabelValues(domain.StateAuthenticated.String()).Inc()
	return user, nil
}

// CurrentUser returns the cached user while it is fresh and refreshes
// otherwise. A nil user with a nil error means nobody is signed in.
func (c *AuthController) CurrentUser(ctx context.Context) (*domain.User, error) {
	if e := c.cache.Read(); !e.Stale {
		return e.User, nil
	}
	if _, err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	return c.cache.Read().User, nil
}

func (c *AuthController) Login(ctx context.Context, in ports.LoginInput) (*domain.User, error) {
	return c.establish(ctx, pathLogin, in)
}

// Register rejects roles that cannot self-register before touching the network.
func (c *AuthController) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if in.Role != "" && !in.Role.Valid() {
		return nil, domain.ErrInvalidRole
	}
	if in.Role != "" && !in.Role.SelfRegistrable() {
		return nil, domain.ErrRoleNotRegistrable
	}
	if err := c.validate.Struct(in); err != nil {
		return nil, err
	}
	return c.establish(ctx, pathRegister, in)
}

// establish posts credentials and, on success, persists the session token
// before publishing the user. The result supersedes any who-am-I call in
// flight. Any failure leaves the session as it was.
func (c *AuthController) establish(ctx context.Context, path string, body any) (*domain.User, error) {
	c.sessionMu.Lock()
	c.establishing++
	c.sessionMu.Unlock()
	defer func() {
		c.sessionMu.Lock()
		c.establishing--
		c.sessionMu.Unlock()
	}()

	t := c.cache.Begin()

	var user domain.User
	if err := c.transport.Request(ctx, http.MethodPost, path, body, &user); err != nil {
		c.cache.Abandon(t)
		return nil, err
	}
	if err := user.Validate(); err != nil {
		c.cache.Abandon(t)
		return nil, fmt.Errorf("user payload: %w", err)
	}

	if err := c.persist(ctx, path); err != nil {
		c.cache.Abandon(t)
		return nil, err
	}

	if !c.cache.WriteFenced(t, &user) {
		c.log.Debug().Str("path", path).Msg("session cleared while the request was in flight")
	}
	metrics.SessionTransitionsTotal.WithLabelValues(domain.StateAuthenticated.String()).Inc()

	c.log.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Str("path", path).Msg("session established")
	return &user, nil
}

func (c *AuthController) persist(ctx context.Context, path string) error {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()

	token, ok := c.transport.SessionToken()
	if !ok {
		return nil
	}
	if err := c.store.Set(ctx, token); err != nil {
		c.transport.ClearSession()
		c.log.Error().Err(err).Str("path", path).Msg("persist session token")
		return err
	}
	return nil
}

// Logout calls the server best-effort and then always drops the local
// session. Only a local storage failure is returned.
func (c *AuthController) Logout(ctx context.Context) error {
	if err := c.transport.Request(ctx, http.MethodPost, pathLogout, nil, nil); err != nil {
		metrics.LogoutRemoteFailuresTotal.Inc()
		c.log.Warn().Err(err).Msg("remote logout failed, clearing local session anyway")
	}

	c.transport.ClearSession()
	c.cache.Clear()
	metrics.SessionTransitionsTotal.WithLabelValues(domain.StateAnonymous.String()).Inc()

	if err := c.store.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Error().Err(err).Msg("clear persisted session token")
		return err
	}
	return nil
}

func (c *AuthController) State() domain.State {
	return c.cache.Read().State()
}

func (c *AuthController) Subscribe(observer identity.Observer) func() {
	return c.cache.Subscribe(observer)
}

// RequestPasswordReset asks the server to send a reset link. It does not
// touch the session.
func (c *AuthController) RequestPasswordReset(ctx context.Context, email string) error {
	in := ports.ForgotPasswordInput{Email: email}
	if err := c.validate.Struct(in); err != nil {
		return err
	}
	return c.transport.Request(ctx, http.MethodPost, pathForgotPassword, in, nil)
}

// ResetPassword redeems a reset token. It does not touch the session.
func (c *AuthController) ResetPassword(ctx context.Context, token, password string) error {
	in := ports.ResetPasswordInput{Token: token, Password: password}
	if err := c.validate.Struct(in); err != nil {
		return err
	}
	return c.transport.Request(ctx, http.MethodPost, pathResetPassword, in, nil)
}

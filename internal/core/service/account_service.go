package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
	"github.com/tlobni/session-core/internal/metrics"
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultResetTTL   = time.Hour
	minPasswordLength = 6
)

// AccountServiceConfig holds the secrets and lifetimes of the session API.
type AccountServiceConfig struct {
	// Secret signs session cookie values.
	Secret     string
	SessionTTL time.Duration
	ResetTTL   time.Duration
}

// AccountService implements registration, login and cookie sessions. The
// cookie value is an HS256 token whose sid claim names a registry entry, so
// a session can be revoked before the token expires.
type AccountService struct {
	repo     ports.AccountRepository
	sessions ports.SessionRegistry
	resets   ports.ResetTokenStore
	notifier ports.Notifier

	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

var _ ports.AccountService = (*AccountService)(nil)

func NewAccountService(
	repo ports.AccountRepository,
	sessions ports.SessionRegistry,
	resets ports.ResetTokenStore,
	notifier ports.Notifier,
	cfg AccountServiceConfig,
	log zerolog.Logger,
) *AccountService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = defaultResetTTL
	}
	return &AccountService{
		repo:       repo,
		sessions:   sessions,
		resets:     resets,
		notifier:   notifier,
		secret:     []byte(cfg.Secret),
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTTL,
		now:        time.Now,
		log:        log,
	}
}

type sessionClaims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

func (s *AccountService) Register(ctx context.Context, in ports.RegisterInput) (string, *domain.User, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" || in.FullName == "" {
		return "", nil, domain.ErrInvalidInput
	}
	if !in.Role.Valid() {
		return "", nil, domain.ErrInvalidRole
	}
	if !in.Role.SelfRegistrable() {
		return "", nil, domain.ErrRoleNotRegistrable
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.repo.Create(ctx, &domain.Account{
		User: domain.User{
			Email:    strings.ToLower(strings.TrimSpace(in.Email)),
			Username: in.Username,
			FullName: in.FullName,
			Role:     in.Role,
			Status:   "active",
		},
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return "", nil, err
	}
	metrics.RegistrationsTotal.WithLabelValues(string(created.Role)).Inc()

	token, err := s.openSession(ctx, created.ID)
	if err != nil {
		return "", nil, err
	}
	return token, &created.User, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	if email == "" || password == "" {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}

	account, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return "", nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := s.openSession(ctx, account.ID)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return "", nil, err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	return token, &account.User, nil
}

func (s *AccountService) openSession(ctx context.Context, userID int64) (string, error) {
	sid, err := s.sessions.Create(ctx, userID, s.sessionTTL)
	if err != nil {
		return "", err
	}

	now := s.now()
	claims := sessionClaims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// Authenticate maps any invalid, expired or revoked token to
// domain.ErrUnauthenticated.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*domain.User, string, error) {
	if token == "" {
		return nil, "", domain.ErrUnauthenticated
	}

	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.SID == "" {
		return nil, "", domain.ErrUnauthenticated
	}

	userID, err := s.sessions.Lookup(ctx, claims.SID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, "", domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, "", err
	}

	account, err := s.repo.FindByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, "", domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, "", err
	}
	return &account.User, claims.SID, nil
}

func (s *AccountService) Logout(ctx context.Context, sid string) error {
	if err := s.sessions.Revoke(ctx, sid); err != nil {
		return err
	}
	metrics.SessionsRevokedTotal.Inc()
	return nil
}

// RequestPasswordReset queues a reset link for known addresses and reports
// success either way, so the endpoint cannot be used to probe for accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrUserNotFound) {
		s.log.Debug().Str("email", email).Msg("password reset requested for unknown address")
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.resets.Issue(ctx, account.ID, s.resetTTL)
	if err != nil {
		return err
	}
	s.notifier.Enqueue(ports.ResetNotice{
		Email: account.Email,
		Name:  account.DisplayName(),
		Token: token,
	})
	return nil
}

func (s *AccountService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.UpdatePassword(ctx, userID, string(hash))
}

package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tlobni/session-core/internal/core/domain"
	"github.com/tlobni/session-core/internal/core/ports"
)

type AccountRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*domain.Account
	byEmail   map[string]int64
	usernames map[string]struct{}
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		byID:      make(map[int64]*domain.Account),
		byEmail:   make(map[string]int64),
		usernames: make(map[string]struct{}),
	}
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func (r *AccountRepository) Create(_ context.Context, account *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(account.Email)
	if _, taken := r.byEmail[email]; taken {
		return nil, domain.ErrUserExists
	}
	if _, taken := r.usernames[account.Username]; taken {
		return nil, domain.ErrUserExists
	}

	r.nextID++
	stored := cloneAccount(account)
	stored.ID = r.nextID
	r.byID[stored.ID] = stored
	r.byEmail[email] = stored.ID
	r.usernames[stored.Username] = struct{}{}
	return cloneAccount(stored), nil
}

func (r *AccountRepository) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneAccount(r.byID[id]), nil
}

func (r *AccountRepository) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneAccount(a), nil
}

func (r *AccountRepository) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	a.PasswordHash = hash
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

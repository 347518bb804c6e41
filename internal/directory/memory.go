package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"account-auth/internal/auth"
)

// Memory keeps accounts in process. Create checks and inserts under one lock,
// so the email uniqueness guarantee matches Postgres within a single instance.
type Memory struct {
	mu      sync.RWMutex
	byID    map[string]auth.Account
	byEmail map[string]string
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		byID:    make(map[string]auth.Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return auth.Account{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[auth.NormalizeEmail(email)]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return copyAccount(m.byID[id]), nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return auth.Account{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.byID[id]
	if !ok {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (m *Memory) Create(ctx context.Context, account auth.NewAccount) (auth.Account, error) {
	if err := ctx.Err(); err != nil {
		return auth.Account{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return auth.Account{}, fmt.Errorf("generate uuid v7: %w", err)
	}

	key := auth.NormalizeEmail(account.Email)
	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[key]; taken {
		return auth.Account{}, auth.ErrEmailTaken
	}

	created := auth.Account{
		ID:            id.String(),
		Name:          account.Name,
		Email:         account.Email,
		PasswordHash:  account.PasswordHash,
		EmailVerified: account.EmailVerified,
		Active:        account.Active,
		Role:          account.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.byID[created.ID] = created
	m.byEmail[key] = created.ID

	return copyAccount(created), nil
}

func (m *Memory) RecordLogin(ctx context.Context, id string, at time.Time) error {
	return m.mutate(ctx, id, func(account *auth.Account) {
		value := at.UTC()
		account.LastLoginAt = &value
		account.UpdatedAt = value
	})
}

func (m *Memory) SetActive(ctx context.Context, id string, active bool) error {
	return m.mutate(ctx, id, func(account *auth.Account) {
		account.Active = active
		account.UpdatedAt = m.now().UTC()
	})
}

func (m *Memory) SetRole(ctx context.Context, id, role string) error {
	return m.mutate(ctx, id, func(account *auth.Account) {
		account.Role = role
		account.UpdatedAt = m.now().UTC()
	})
}

// Len returns the number of stored accounts.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

func (m *Memory) mutate(ctx context.Context, id string, apply func(*auth.Account)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.byID[id]
	if !ok {
		return auth.ErrAccountNotFound
	}
	apply(&account)
	m.byID[id] = account
	return nil
}

func copyAccount(account auth.Account) auth.Account {
	if account.LastLoginAt != nil {
		value := *account.LastLoginAt
		account.LastLoginAt = &value
	}
	return account
}

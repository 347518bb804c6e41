package auth

import (
	"context"
	"strings"
	"time"
)

// Directory is the account store the core consumes. Implementations must make
// Create atomic with respect to email uniqueness and return ErrEmailTaken when
// the address is already registered. Lookups return ErrAccountNotFound when no
// account matches; any other error is treated as the store being unreachable.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, account NewAccount) (Account, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// NormalizeEmail is applied to every address before it reaches the directory.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

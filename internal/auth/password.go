package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const DefaultBcryptCost = 12

// maxPasswordBytes is the bcrypt input limit. Longer inputs are truncated by
// bcrypt, so they can never be the password a hash was made from.
const maxPasswordBytes = 72

var ErrEmptyPassword = errors.New("password must not be empty")

// PasswordHasher hashes and verifies passwords with bcrypt. Every hash or
// compare holds one slot of a weighted semaphore so a burst of signins cannot
// take every CPU away from other requests.
type PasswordHasher struct {
	cost  int
	slots *semaphore.Weighted

	dummyOnce sync.Once
	dummyHash []byte

	compares atomic.Int64
}

func NewPasswordHasher(cost, concurrency int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &PasswordHasher{
		cost:  cost,
		slots: semaphore.NewWeighted(int64(concurrency)),
	}
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}

func (h *PasswordHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	if err := h.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.slots.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether plaintext matches hash. A corrupt hash or a context
// that ends before a slot frees up is a non-match.
func (h *PasswordHasher) Verify(ctx context.Context, plaintext, hash string) bool {
	return h.compare(ctx, []byte(hash), plaintext)
}

// DummyVerify spends the same work as Verify against a hash nobody knows the
// password for. Signin calls it when no account matches the email.
func (h *PasswordHasher) DummyVerify(ctx context.Context, plaintext string) {
	h.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), h.cost)
		if err == nil {
			h.dummyHash = hash
		}
	})
	_ = h.compare(ctx, h.dummyHash, plaintext)
}

func (h *PasswordHasher) compare(ctx context.Context, hash []byte, plaintext string) bool {
	if err := h.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	defer h.slots.Release(1)

	h.compares.Add(1)
	matched := bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
	return matched && len(plaintext) <= maxPasswordBytes
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger is the logging boundary used by the core. Fields are already
// classified; the implementation decides which keys to redact.
type Logger interface {
	Info(message string, fields map[string]any)
	Warn(message string, fields map[string]any)
	Error(message string, fields map[string]any)
}

type nopLogger struct{}

func (nopLogger) Info(string, map[string]any)  {}
func (nopLogger) Warn(string, map[string]any)  {}
func (nopLogger) Error(string, map[string]any) {}

type Service struct {
	directory Directory
	hasher    *PasswordHasher
	codec     *TokenCodec
	logger    Logger
	now       func() time.Time
}

func NewService(directory Directory, hasher *PasswordHasher, codec *TokenCodec, logger Logger) *Service {
	if logger == nil {
		logger = nopLogger{}
	}

	return &Service{
		directory: directory,
		hasher:    hasher,
		codec:     codec,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Signup registers a new active account with role "user" and returns a token
// for it. The lookup is only an early exit; the directory's uniqueness check
// on Create decides concurrent signups for the same address.
func (s *Service) Signup(ctx context.Context, name, email, password string) (AuthResult, error) {
	email = NormalizeEmail(email)

	_, err := s.directory.FindByEmail(ctx, email)
	switch {
	case err == nil:
		s.logger.Info("signup_rejected", map[string]any{"email": email, "reason": KindAccountExists})
		return AuthResult{}, ErrAccountExists
	case !errors.Is(err, ErrAccountNotFound):
		return AuthResult{}, directoryError(ctx, "find account by email", err)
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("signup: %w", err)
	}

	account, err := s.directory.Create(ctx, NewAccount{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: false,
		Active:        true,
		Role:          DefaultRole,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			s.logger.Info("signup_rejected", map[string]any{"email": email, "reason": KindAccountExists})
			return AuthResult{}, ErrAccountExists
		}
		return AuthResult{}, directoryError(ctx, "create account", err)
	}

	result, err := s.issue(account)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("signup_succeeded", map[string]any{"account_id": account.ID, "email": email})
	return result, nil
}

// Signin never tells the caller whether the email exists: unknown and
// inactive accounts go through a dummy bcrypt compare and fail the same way
// as a wrong password.
func (s *Service) Signin(ctx context.Context, email, password string) (AuthResult, error) {
	email = NormalizeEmail(email)

	account, err := s.directory.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return AuthResult{}, directoryError(ctx, "find account by email", err)
	}

	if err != nil || !account.Active {
		s.hasher.DummyVerify(ctx, password)
		return AuthResult{}, s.rejectSignin(ctx, email)
	}

	if !s.hasher.Verify(ctx, password, account.PasswordHash) {
		return AuthResult{}, s.rejectSignin(ctx, email)
	}

	if err := s.directory.RecordLogin(ctx, account.ID, s.now()); err != nil {
		s.logger.Warn("record_login_failed", map[string]any{"account_id": account.ID, "error": err.Error()})
	}

	result, err := s.issue(account)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info("signin_succeeded", map[string]any{"account_id": account.ID})
	return result, nil
}

func (s *Service) rejectSignin(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("signin: %w", err)
	}
	s.logger.Info("signin_rejected", map[string]any{"email": email, "reason": KindInvalidCredentials})
	return ErrInvalidCredentials
}

func (s *Service) issue(account Account) (AuthResult, error) {
	token, err := s.codec.Issue(TokenClaims{
		Subject: account.ID,
		Email:   account.Email,
		Role:    account.Role,
	})
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	return AuthResult{Token: token, User: PrincipalOf(account)}, nil
}

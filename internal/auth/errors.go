package auth

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an authentication failure so callers can switch on it
// instead of matching error strings.
type Kind string

const (
	KindUnknown              Kind = ""
	KindValidation           Kind = "validation"
	KindAccountExists        Kind = "account_exists"
	KindInvalidCredentials   Kind = "invalid_credentials"
	KindNoToken              Kind = "no_token"
	KindInvalidToken         Kind = "invalid_token"
	KindTokenExpired         Kind = "token_expired"
	KindAccountUnavailable   Kind = "account_unavailable"
	KindDirectoryUnavailable Kind = "directory_unavailable"
)

// Error carries a Kind and an optional cause. Two *Error values match under
// errors.Is when their kinds are equal, so wrapped causes never hide the kind.
type Error struct {
	Kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.message
	}
	return e.message + ": " + e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation           = &Error{Kind: KindValidation, message: "validation failed"}
	ErrAccountExists        = &Error{Kind: KindAccountExists, message: "account already exists"}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials, message: "invalid credentials"}
	ErrNoToken              = &Error{Kind: KindNoToken, message: "missing bearer token"}
	ErrInvalidToken         = &Error{Kind: KindInvalidToken, message: "invalid token"}
	ErrTokenExpired         = &Error{Kind: KindTokenExpired, message: "token expired"}
	ErrAccountUnavailable   = &Error{Kind: KindAccountUnavailable, message: "account unavailable"}
	ErrDirectoryUnavailable = &Error{Kind: KindDirectoryUnavailable, message: "directory unavailable"}
)

// Errors returned by Directory implementations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

// directoryError classifies a failed directory call. A request whose context
// has ended gets the context error back instead of DirectoryUnavailable.
func directoryError(ctx context.Context, op string, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return &Error{Kind: KindDirectoryUnavailable, message: op, cause: cause}
}

func tokenError(kind Kind, cause error) error {
	base := ErrInvalidToken
	if kind == KindTokenExpired {
		base = ErrTokenExpired
	}
	return &Error{Kind: kind, message: base.message, cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindUnknown
}

// IsRejection reports whether err is one of the authorization rejections that
// collapse to a generic unauthorized response at the boundary.
func IsRejection(err error) bool {
	switch KindOf(err) {
	case KindNoToken, KindInvalidToken, KindTokenExpired, KindAccountUnavailable:
		return true
	default:
		return false
	}
}

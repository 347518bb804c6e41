package auth

import "time"

const DefaultRole = "user"

type Account struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string `json:"-"`
	EmailVerified bool
	Active        bool
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastLoginAt   *time.Time
}

// NewAccount is what the service hands to Directory.Create. PasswordHash is
// always a hash produced by PasswordHasher.
type NewAccount struct {
	Name          string
	Email         string
	PasswordHash  string
	EmailVerified bool
	Active        bool
	Role          string
}

// Principal is the public view of an Account attached to an authorized request.
type Principal struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	EmailVerified bool      `json:"emailVerified"`
	Role          string    `json:"role"`
	CreatedAt     time.Time `json:"createdAt"`
}

func PrincipalOf(account Account) Principal {
	return Principal{
		ID:            account.ID,
		Name:          account.Name,
		Email:         account.Email,
		EmailVerified: account.EmailVerified,
		Role:          account.Role,
		CreatedAt:     account.CreatedAt,
	}
}

type TokenClaims struct {
	Subject   string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type AuthResult struct {
	Token string    `json:"token"`
	User  Principal `json:"user"`
}

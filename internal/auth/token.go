package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultTokenTTL = 24 * time.Hour

var signingMethod = jwt.SigningMethodHS256

type accessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 JWTs carrying account claims.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	leeway time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenCodec)

func WithIssuer(issuer string) TokenOption {
	return func(c *TokenCodec) {
		c.issuer = issuer
	}
}

// WithLeeway allows exp and iat checks to tolerate clock skew. The default is
// no leeway.
func WithLeeway(leeway time.Duration) TokenOption {
	return func(c *TokenCodec) {
		if leeway > 0 {
			c.leeway = leeway
		}
	}
}

func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewTokenCodec(secret string, ttl time.Duration, opts ...TokenOption) *TokenCodec {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	codec := &TokenCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}

	return codec
}

func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs claims for account. IssuedAt and ExpiresAt are set from the
// codec clock and TTL; any values in claims are ignored.
func (c *TokenCodec) Issue(claims TokenClaims) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("token subject is required")
	}

	now := c.now()
	payload := accessClaims{
		Email: claims.Email,
		Role:  claims.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.issuer,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, payload).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}

	return signed, nil
}

// Verify checks the signature first, then expiry and structure. It fails with
// ErrTokenExpired once now reaches the exp claim and with ErrInvalidToken for
// anything else.
func (c *TokenCodec) Verify(raw string) (TokenClaims, error) {
	if raw == "" {
		return TokenClaims{}, ErrInvalidToken
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}

	payload := &accessClaims{}
	token, err := jwt.ParseWithClaims(raw, payload, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, tokenError(KindTokenExpired, err)
		}
		return TokenClaims{}, tokenError(KindInvalidToken, err)
	}
	if !token.Valid {
		return TokenClaims{}, ErrInvalidToken
	}

	if payload.Subject == "" || payload.Email == "" || payload.IssuedAt == nil {
		return TokenClaims{}, tokenError(KindInvalidToken, errors.New("token is missing required claims"))
	}

	return TokenClaims{
		Subject:   payload.Subject,
		Email:     payload.Email,
		Role:      payload.Role,
		IssuedAt:  payload.IssuedAt.Time,
		ExpiresAt: payload.ExpiresAt.Time,
	}, nil
}

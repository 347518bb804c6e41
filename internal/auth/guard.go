package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
)

type principalContextKey struct{}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// Guard authorizes requests carrying a bearer token. Claims only identify the
// account; role and active state always come from the directory.
type Guard struct {
	codec     *TokenCodec
	directory Directory
	logger    Logger
}

func NewGuard(codec *TokenCodec, directory Directory, logger Logger) *Guard {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Guard{codec: codec, directory: directory, logger: logger}
}

// Authorize runs the full check for one Authorization header value. It fails
// with ErrNoToken, ErrInvalidToken, ErrTokenExpired, ErrAccountUnavailable or,
// when the directory cannot be reached, ErrDirectoryUnavailable.
func (g *Guard) Authorize(ctx context.Context, header string) (Principal, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return Principal{}, ErrNoToken
	}

	claims, err := g.codec.Verify(raw)
	if err != nil {
		return Principal{}, err
	}

	account, err := g.directory.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Principal{}, ErrAccountUnavailable
		}
		return Principal{}, directoryError(ctx, "find account by id", err)
	}
	if !account.Active {
		return Principal{}, ErrAccountUnavailable
	}

	return PrincipalOf(account), nil
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Authorize(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if IsRejection(err) {
				g.logger.Info("access_rejected", map[string]any{
					"path":   r.URL.Path,
					"reason": KindOf(err),
				})
				writeUnauthorized(w)
				return
			}

			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				g.logger.Warn("access_check_aborted", map[string]any{"path": r.URL.Path, "error": err.Error()})
				writeServiceUnavailable(w)
				return
			}

			g.logger.Error("access_check_failed", map[string]any{"path": r.URL.Path, "error": err.Error()})
			sentry.CaptureException(err)
			writeServiceUnavailable(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// The reason never reaches the wire.
func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func writeServiceUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
}

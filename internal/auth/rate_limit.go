package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"account-auth/internal/observability"
)

const (
	DefaultRateLimitMax    = 100
	DefaultRateLimitWindow = 15 * time.Minute
)

// RateLimiter is a per client IP sliding window over the signup and signin
// routes.
type RateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	hitByIP   map[string][]time.Time
	maxMemory int
	now       func() time.Time
}

func NewRateLimiter(maxHits int, window time.Duration) *RateLimiter {
	if maxHits <= 0 {
		maxHits = DefaultRateLimitMax
	}
	if window <= 0 {
		window = DefaultRateLimitWindow
	}

	return &RateLimiter{
		maxHits:   maxHits,
		window:    window,
		hitByIP:   make(map[string][]time.Time),
		maxMemory: 5000,
		now:       time.Now,
	}
}

func (l *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.Allow(observability.ClientIP(r))
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Allow records a hit for key and reports whether it is within the window
// budget. When it is not, the duration until the oldest hit leaves the window
// is returned.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now().UTC()
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	hits := l.hitByIP[key]
	filtered := make([]time.Time, 0, len(hits)+1)
	for _, hit := range hits {
		if hit.After(threshold) {
			filtered = append(filtered, hit)
		}
	}

	if len(filtered) >= l.maxHits {
		retryAfter := filtered[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hitByIP[key] = filtered
		return false, retryAfter
	}

	filtered = append(filtered, now)
	l.hitByIP[key] = filtered

	if len(l.hitByIP) > l.maxMemory {
		for ip, value := range l.hitByIP {
			if len(value) == 0 || !value[len(value)-1].After(threshold) {
				delete(l.hitByIP, ip)
			}
		}
	}

	return true, 0
}

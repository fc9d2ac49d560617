package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cf-error-page/editor/internal/platform/httpx"
	"github.com/cf-error-page/editor/internal/platform/requestctx"
)

const rateLimitMessage = "rate limit exceeded"

type rateLimiter interface {
	Allow(key string) bool
}

type simpleRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) *simpleRateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &simpleRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *simpleRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

func (l *simpleRateLimiter) pruneExpiredLocked(now time.Time) {
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}

// multiWindowLimiter admits a request only when every window admits it. Each window counts
// the request independently.
type multiWindowLimiter []*simpleRateLimiter

func (m multiWindowLimiter) Allow(key string) bool {
	allowed := true
	for _, l := range m {
		if !l.Allow(key) {
			allowed = false
		}
	}
	return allowed
}

// newCreateRateLimiter builds the per-client limiter for share creation. A non-positive
// limit disables that window; nil is returned when both are disabled.
func newCreateRateLimiter(perMinute, perHour int, clock func() time.Time) rateLimiter {
	var windows multiWindowLimiter
	if l := newSimpleRateLimiter(perMinute, time.Minute, clock); l != nil {
		windows = append(windows, l)
	}
	if l := newSimpleRateLimiter(perHour, time.Hour, clock); l != nil {
		windows = append(windows, l)
	}
	if len(windows) == 0 {
		return nil
	}
	return windows
}

// rateLimitMiddleware rejects requests beyond the limiter's budget with 429, keyed on the
// resolved client address.
func rateLimitMiddleware(limiter rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				requestctx.Logger(r.Context()).Info("create rate limited")
				httpx.WriteFailure(w, http.StatusTooManyRequests, rateLimitMessage)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if edge, ok := requestctx.Edge(r.Context()); ok && edge.RemoteAddr != "" {
		return edge.RemoteAddr
	}
	return r.RemoteAddr
}

package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

type bucket struct {
	count int
	until time.Time
}

type rateLimiter struct {
	limit   int
	per     time.Duration
	counted []string
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// RateLimit allows limit requests per client IP in each fixed window of length
// per. When counted methods are given only those requests consume the quota,
// so status polling does not eat into the submission budget. A non-positive
// limit disables it.
func RateLimit(limit int, per time.Duration, counted ...string) func(http.Handler) http.Handler {
	return newRateLimiter(limit, per, counted...).middleware
}

func newRateLimiter(limit int, per time.Duration, counted ...string) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		per:     per,
		counted: counted,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	if l.limit <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(l.counted) > 0 && !slices.Contains(l.counted, r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		remaining, retry, ok := l.take(ClientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many requests"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// take consumes one request for key. It returns the quota left in the
// current window, or how long until the window resets when none is left.
func (l *rateLimiter) take(key string) (int, time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok || now.After(b.until) {
		l.sweep(now)
		b = &bucket{until: now.Add(l.per)}
		l.buckets[key] = b
	}
	if b.count >= l.limit {
		return 0, b.until.Sub(now), false
	}
	b.count++
	return l.limit - b.count, 0, true
}

// sweep drops expired windows so idle clients do not accumulate.
func (l *rateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.After(b.until) {
			delete(l.buckets, key)
		}
	}
}

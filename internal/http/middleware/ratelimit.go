package middlewarex

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	redisstore "afripay/internal/store/redis"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

// Limiter decides whether key may make another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (redisstore.Decision, error)
}

// RateLimit answers 429 once a client exceeds its window. Limiter errors fail
// open.
func RateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := l.Allow(r.Context(), clientKey(r))
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				retry := int(time.Until(d.ResetAt).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				writeError(w, http.StatusTooManyRequests, "too many requests, please try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the connection's peer address. Forwarding headers are
// client-controlled and never consulted.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryLimiter is a per-process token bucket per key, used when no Redis is
// configured. Each bucket holds limit tokens and refills over window.
type MemoryLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*rate.Limiter
	maxBuckets int
	limit      int
	every      rate.Limit
	window     time.Duration
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		buckets:    map[string]*rate.Limiter{},
		maxBuckets: 10000,
		limit:      limit,
		every:      rate.Every(window / time.Duration(limit)),
		window:     window,
	}
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (redisstore.Decision, error) {
	now := time.Now()

	m.mu.Lock()
	lim, ok := m.buckets[key]
	if !ok {
		if len(m.buckets) >= m.maxBuckets {
			m.evictLocked(now)
		}
		lim = rate.NewLimiter(m.every, m.limit)
		m.buckets[key] = lim
	}
	m.mu.Unlock()

	allowed := lim.AllowN(now, 1)
	remaining := int(lim.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return redisstore.Decision{
		Allowed:   allowed,
		Limit:     m.limit,
		Remaining: remaining,
		ResetAt:   now.Add(time.Duration(float64(time.Second) / float64(m.every))),
	}, nil
}

// evictLocked drops the bucket holding the most tokens. A full bucket
// behaves exactly like a new one; throttled clients are evicted last.
func (m *MemoryLimiter) evictLocked(now time.Time) {
	var victim string
	most := -1.0
	for k, lim := range m.buckets {
		tokens := lim.TokensAt(now)
		if tokens > most {
			victim, most = k, tokens
		}
		if tokens >= float64(m.limit) {
			break
		}
	}
	delete(m.buckets, victim)
}

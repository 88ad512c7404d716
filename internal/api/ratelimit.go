package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

const (
	maxTrackedClients = 10000
	bucketIdleTTL     = 5 * time.Minute
)

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
}

func newTokenBucket(capacity, refillRate float64, now time.Time) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, last: now}
}

func (tb *tokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.last).Seconds()
	tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
	tb.last = now
}

// take consumes a token if one is available and reports the tokens left and
// when the bucket will be full again.
func (tb *tokenBucket) take(now time.Time) (ok bool, remaining int, reset time.Time) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	if tb.tokens >= 1 {
		tb.tokens--
		ok = true
	}
	reset = now
	if tb.tokens < tb.capacity && tb.refillRate > 0 {
		secs := (tb.capacity - tb.tokens) / tb.refillRate
		reset = now.Add(time.Duration(secs * float64(time.Second)))
	}
	return ok, int(tb.tokens), reset
}

// RateLimiter limits requests per client IP with token buckets. Idle
// buckets expire after a few minutes.
type RateLimiter struct {
	cfg     RateLimiterConfig
	log     *slog.Logger
	now     func() time.Time
	mu      sync.Mutex
	buckets *expirable.LRU[string, *tokenBucket]
}

// NewRateLimiter returns a limiter for cfg.
func NewRateLimiter(cfg RateLimiterConfig, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		buckets: expirable.NewLRU[string, *tokenBucket](maxTrackedClients, nil, bucketIdleTTL),
	}
}

func (rl *RateLimiter) bucket(ip string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if b, ok := rl.buckets.Get(ip); ok {
		return b
	}
	b := newTokenBucket(float64(rl.cfg.BurstSize), float64(rl.cfg.RequestsPerMinute)/60, rl.now())
	rl.buckets.Add(ip, b)
	return b
}

// Allow consumes one request for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	ok, _, _ := rl.bucket(ip).take(rl.now())
	return ok
}

// Middleware applies the limiter and sets X-RateLimit headers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, remaining, reset := rl.bucket(ip).take(rl.now())

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerMinute))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !ok {
			retryAfter := int(reset.Sub(rl.now()).Seconds()) + 1
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			rl.log.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
			respondError(w, http.StatusTooManyRequests, codeRateLimited,
				fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", retryAfter))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP prefers the leftmost valid X-Forwarded-For address, then
// X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(realIP) != nil {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if net.ParseIP(host) != nil {
		return host
	}
	return "unknown"
}

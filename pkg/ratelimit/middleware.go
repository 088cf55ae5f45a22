package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// Config holds rate limiting configuration for one middleware.
type Config struct {
	Capacity   int     // Max burst
	RefillRate float64 // Requests per second
	BucketTTL  time.Duration
}

// DefaultConfig allows 60 requests per minute per key.
func DefaultConfig() Config {
	return Config{
		Capacity:   60,
		RefillRate: 1.0,
		BucketTTL:  time.Hour,
	}
}

// KeyFunc picks the bucket for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests whose key has run out of tokens.
type Middleware struct {
	limiter *RateLimiter
	keyFunc KeyFunc
}

// NewMiddleware creates a new rate limiting middleware. A nil keyFunc limits
// by client IP.
func NewMiddleware(config Config, keyFunc KeyFunc, opts ...Option) *Middleware {
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return &Middleware{
		limiter: NewRateLimiter(config.Capacity, config.RefillRate, config.BucketTTL, opts...),
		keyFunc: keyFunc,
	}
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.keyFunc(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if ok, wait := m.limiter.Reserve(key); !ok {
			slog.Warn("Rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method)
			WriteRateLimited(w, r, wait)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close stops the limiter's cleanup goroutine.
func (m *Middleware) Close() {
	m.limiter.Close()
}

// WriteRateLimited writes a 429 with a Retry-After header in whole seconds.
func WriteRateLimited(w http.ResponseWriter, r *http.Request, wait time.Duration) {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	retryAfter := strconv.Itoa(seconds)
	appErr := apperrors.RateLimitExceeded(retryAfter)

	w.Header().Set("Retry-After", retryAfter)
	render.Status(r, appErr.HTTPStatusCode())
	render.JSON(w, r, map[string]string{"message": appErr.Message})
}

// ClientIP extracts the client IP address from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// X-Forwarded-For can contain multiple IPs, take the first one
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is in format "IP:port", we only want the IP
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

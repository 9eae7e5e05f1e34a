package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/vaidashi/backoffice-api/pkg/logger"
	"github.com/vaidashi/backoffice-api/pkg/ratelimit"
)

// RateLimiterMiddleware limits write requests per acting user, falling back
// to the client address for anonymous callers.
type RateLimiterMiddleware struct {
	limiter           *ratelimit.KeyedLimiter
	logger            logger.Logger
	trustForwardedFor bool
	maxTokens         float64
	refillRate        float64
}

// RateLimiterConfig configures the rate limiter middleware
type RateLimiterConfig struct {
	MaxTokens         float64
	RefillRate        float64
	IdleTTL           time.Duration
	TrustForwardedFor bool
}

// NewRateLimiterMiddleware creates a new rate limiter middleware
func NewRateLimiterMiddleware(cfg *RateLimiterConfig, logger logger.Logger) *RateLimiterMiddleware {
	return &RateLimiterMiddleware{
		limiter:           ratelimit.NewKeyedLimiter(cfg.MaxTokens, cfg.RefillRate, cfg.IdleTTL),
		logger:            logger,
		trustForwardedFor: cfg.TrustForwardedFor,
		maxTokens:         cfg.MaxTokens,
		refillRate:        cfg.RefillRate,
	}
}

// Middleware returns a middleware function. Safe methods are never limited.
func (m *RateLimiterMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		key := ActorFromContext(r.Context())
		if key == "" {
			key = "ip:" + m.getClientIP(r)
		}

		if !m.limiter.Allow(key) {
			m.logger.Warn("Rate limit exceeded", "method", r.Method, "path", r.URL.Path, "key", key)

			w.Header().Set("Retry-After", "10")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientIP extracts the client IP from the request
func (m *RateLimiterMiddleware) getClientIP(r *http.Request) string {
	if m.trustForwardedFor {
		if forwardedFor := r.Header.Get("X-Forwarded-For"); forwardedFor != "" {
			ips := strings.Split(forwardedFor, ",")
			return strings.TrimSpace(ips[0])
		}
	}

	ip := r.RemoteAddr
	if i := strings.LastIndex(ip, ":"); i != -1 {
		ip = ip[:i]
	}
	return ip
}

// Stats reports the limiter settings and how many callers are tracked
func (m *RateLimiterMiddleware) Stats() map[string]interface{} {
	return map[string]interface{}{
		"max_tokens":   m.maxTokens,
		"refill_rate":  m.refillRate,
		"tracked_keys": m.limiter.Len(),
	}
}

// Stop stops the limiter's eviction loop
func (m *RateLimiterMiddleware) Stop() {
	m.limiter.Stop()
}

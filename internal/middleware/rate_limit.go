package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

// RateLimitConfig holds per-IP request limiting for a route group. This is
// the outer HTTP throttle; the identity-keyed limits live in the service
// layer.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultAuthRateLimit throttles unauthenticated auth endpoints.
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 15, Window: time.Minute}
}

// DefaultAPIRateLimit throttles authenticated API traffic.
func DefaultAPIRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 120, Window: time.Minute}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate_limit_exceeded","message":"too many requests"}`))
		}),
	)
}

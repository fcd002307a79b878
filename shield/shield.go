// CLAUDE:SUMMARY HTTP middleware for the relay API: trace IDs, security headers, HEAD handling, body limits, CORS, per-IP rate limiting.
// Package shield provides the HTTP middleware stack placed in front of the
// entitlement endpoints.
//
// Usage:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RealIP, middleware.Recoverer)
//	for _, mw := range shield.DefaultAPIStack(ctx, shield.Config{MaxBodyBytes: 10 << 20}) {
//	    r.Use(mw)
//	}
package shield

import (
	"context"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// Config tunes the API stack.
type Config struct {
	// MaxBodyBytes caps request bodies. Zero disables the limit.
	MaxBodyBytes int64

	// AllowedOrigins lists the origins that receive CORS headers.
	// Empty or "*" allows every origin.
	AllowedOrigins []string

	// RPS and Burst configure per-IP rate limiting. RPS <= 0 disables it.
	RPS   float64
	Burst int
}

// DefaultAPIStack returns the middleware stack for a JSON API service, in
// order: TraceID → HeadToGet → SecurityHeaders → CORS → MaxBody → RateLimiter.
// The rate limiter's cleanup goroutine stops when ctx is done.
func DefaultAPIStack(ctx context.Context, cfg Config) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{
		TraceID,
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		CORS(cfg.AllowedOrigins),
		MaxBody(cfg.MaxBodyBytes),
	}
	if cfg.RPS > 0 {
		rl := NewRateLimiter(cfg.RPS, cfg.Burst)
		rl.StartCleanup(ctx)
		stack = append(stack, rl.Middleware)
	}
	return stack
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/floodgate/pkg/ratelimiter"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter is the rate limiting implementation to use
	Limiter *ratelimiter.Limiter
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// KeyFunc defines how to extract the rate limiting key from requests (default: client IP)
	KeyFunc func(r *http.Request) string
	// ErrorHandler defines how to handle denials (default: 429 with the denial record as JSON)
	ErrorHandler func(w http.ResponseWriter, r *http.Request, fw *ratelimiter.FloodWait)
	// SetHeaders determines whether to include rate limit information in response headers
	SetHeaders bool
}

// RateLimit creates a rate limiting middleware with the provided configuration.
// It admits requests through the limiter keyed by client identity (default:
// client IP) and answers throttled requests with 429 Too Many Requests,
// serializing the FloodWait denial as the response body. Store failures are
// answered with 500, never with an admission. Panics if no limiter is provided.
//
//	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(redisClient), ratelimiter.Config{
//		Prefix: "api_rate_limit",
//		Rate:   100,
//		Period: time.Hour,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mux.Handle("/api/", middleware.RateLimit(middleware.RateLimitConfig{
//		Limiter:    limiter,
//		SetHeaders: true,
//	})(apiHandler))
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		panic("ratelimit middleware: limiter is required")
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, fw *ratelimiter.FloodWait) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(fw)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyFunc(r)
			err := cfg.Limiter.Acquire(r.Context(), key)

			var fw *ratelimiter.FloodWait
			switch {
			case errors.As(err, &fw):
				if cfg.SetHeaders {
					setRateLimitHeaders(w, cfg.Limiter, 0, fw)
				}
				cfg.ErrorHandler(w, r, fw)
				return
			case err != nil:
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			if cfg.SetHeaders {
				setRateLimitHeaders(w, cfg.Limiter, remainingBudget(r, cfg.Limiter, key), nil)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// remainingBudget reports how many more requests key can make this window.
// The window's budget is Rate+1: denial triggers only once usage is strictly
// past the rate. A failed usage read reports 0 rather than failing a request
// that was already admitted.
func remainingBudget(r *http.Request, limiter *ratelimiter.Limiter, key string) int {
	usage, err := limiter.Usage(r.Context(), key)
	if err != nil {
		return 0
	}
	return limiter.Rate() + 1 - int(usage)
}

// setRateLimitHeaders adds standard rate limiting headers to the response:
// X-RateLimit-Limit with the window quota, X-RateLimit-Remaining with the
// requests left in the current window (clamped to 0), and Retry-After
// (whole seconds, rounded up) when the request was denied.
func setRateLimitHeaders(w http.ResponseWriter, limiter *ratelimiter.Limiter, remaining int, fw *ratelimiter.FloodWait) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Rate()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))

	if fw != nil && fw.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(fw.RetryAfterSeconds()))
	}
}

// Package middleware provides net/http middleware for wiring the floodgate
// rate limiter into HTTP services.
//
// The RateLimit middleware keys requests by client identity (client IP by
// default, with proxy header handling) and translates the limiter's outcomes
// into HTTP semantics: admitted requests pass through, FloodWait denials
// become 429 responses carrying the denial record as JSON plus a Retry-After
// header, and store failures become 500 responses rather than silent
// admissions.
//
//	limiter, err := ratelimiter.New(ratelimiter.NewRedisStore(client), ratelimiter.Config{
//		Prefix: "api_rate_limit",
//		Rate:   100,
//		Period: time.Hour,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	handler := middleware.RateLimit(middleware.RateLimitConfig{
//		Limiter:    limiter,
//		SetHeaders: true,
//	})(mux)
//
// Key extraction, skipping and denial rendering are all replaceable through
// RateLimitConfig for services that throttle by API key, tenant or route.
package middleware

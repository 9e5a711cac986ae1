// Package ratelimiter provides distributed fixed-window rate limiting with
// pluggable storage backends.
//
// The limiter counts how many actions an identifier (user ID, API key, client
// IP) has performed within a rolling window, admits the action while under the
// configured threshold, and denies it with a precise retry delay once the
// threshold is exceeded. Counters live in a shared TTL-capable key-value store,
// so multiple processes running the same policy against the same store and key
// prefix throttle their callers collectively.
//
// # Fixed-Window Algorithm
//
// Per identifier the limiter keeps two records in the store:
//
//   - "<prefix>:<identifier>:usage" — the number of actions in the current
//     window; expires Period after the window started.
//   - "<prefix>:<identifier>:restrict" — a marker denying all actions;
//     expires RetryAfter after the identifier was denied.
//
// Acquire first rejects restricted identifiers without touching the counter,
// then reads, compares and increments the counter under a process-local mutex.
// Once usage is strictly past Rate the counter is deleted, a restriction
// marker is placed and the caller receives a FloodWait denial. Note the
// deliberate boundary: the limiter admits up to Rate+1 actions per window
// before the next arrival is denied.
//
// # Usage
//
// Basic setup against Redis:
//
//	store := ratelimiter.NewRedisStore(redisClient)
//
//	limiter, err := ratelimiter.New(store, ratelimiter.Config{
//		Prefix: "api_rate_limit",
//		Rate:   100,              // 100 actions
//		Period: time.Minute,      // per minute
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Admitting actions:
//
//	err := limiter.Acquire(ctx, "user:123")
//
//	var fw *ratelimiter.FloodWait
//	switch {
//	case errors.As(err, &fw):
//		// Throttled: the expected steady-state outcome over quota.
//		log.Printf("flood wait: retry after %s", fw.RetryAfter)
//	case err != nil:
//		// Store failure: a distinct, non-throttling fault.
//		log.Printf("rate limiter store error: %v", err)
//	default:
//		// Admitted, continue processing.
//	}
//
// Deny without restricting (the caller is notified but the identifier starts a
// fresh window immediately):
//
//	err := limiter.Acquire(ctx, "user:123", ratelimiter.WithoutRestrict())
//
// Inspection and manual restriction:
//
//	usage, err := limiter.Usage(ctx, "user:123")      // actions this window
//	wait, err := limiter.Remaining(ctx, "user:123")   // time left on a restriction
//	err = limiter.Restrict(ctx, "user:123")           // deny for RetryAfter, unconditionally
//
// # Storage Backends
//
// RedisStore (distributed):
//
//	store := ratelimiter.NewRedisStore(redisClient)
//	// Shared across processes; atomicity per key comes from Redis commands.
//
// MemoryStore (single process, deterministic tests):
//
//	store := ratelimiter.NewMemoryStore()
//	// Optional background sweep of expired entries:
//	go store.Start(ctx)
//	defer store.Stop()
//
// Any type implementing the five-operation Store interface (Get, Incr, SetEx,
// TTL, Del) can serve as a backend, as long as each operation is atomic per
// key at the store level.
//
// # Consistency Model
//
// The local mutex serializes the decision sequence across goroutines of one
// process only. Across processes the limiter relies solely on the atomicity of
// the individual store commands, so under heavy cross-process contention a
// window can admit up to one extra action per racing process. Store failures
// are propagated unchanged and never converted into an admission decision:
// the limiter fails closed by propagation, and callers wanting different
// behavior (circuit breaking, fail-open) must layer it on top.
package ratelimiter

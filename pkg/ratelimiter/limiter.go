package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	usageSuffix    = "usage"
	restrictSuffix = "restrict"

	denialMessage = "rate limit exceeded"
)

// Config defines the fixed-window policy enforced by a Limiter.
// All fields are immutable for the lifetime of the Limiter built from them.
type Config struct {
	// Prefix namespaces every key written to the store. It is supplied without
	// a trailing separator; the limiter produces keys of the shape
	// "<prefix>:<identifier>:usage" and "<prefix>:<identifier>:restrict".
	Prefix string

	// Rate is the number of actions permitted per window. The limiter admits
	// up to Rate+1 actions before denying: denial triggers only once a prior
	// increment has already pushed usage strictly past Rate.
	Rate int

	// Period is the window length. TTLs are written with whole-second
	// granularity when the backing store requires it (Redis does not).
	Period time.Duration

	// RetryAfter is how long a denied identifier stays restricted.
	// Defaults to Period when zero.
	RetryAfter time.Duration
}

func (c Config) validate() error {
	if c.Prefix == "" {
		return fmt.Errorf("%w: prefix is required", ErrInvalidConfig)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %d", ErrInvalidConfig, c.Rate)
	}
	if c.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %v", ErrInvalidConfig, c.Period)
	}
	if c.RetryAfter < 0 {
		return fmt.Errorf("%w: retry after must not be negative, got %v", ErrInvalidConfig, c.RetryAfter)
	}
	return nil
}

// Limiter is a distributed fixed-window rate limiter. It tracks per-identifier
// usage counters in a shared Store and places restriction markers on
// identifiers that exceed their quota. Multiple processes may share the same
// store and prefix; each holds its own Limiter instance.
//
// A process-local mutex serializes the read-increment-decide sequence across
// goroutines of one process. Cross-process consistency is bounded by the
// atomicity of the individual store commands only: under heavy cross-process
// contention a window may admit up to one extra action per racing process.
type Limiter struct {
	store      Store
	prefix     string
	rate       int
	period     time.Duration
	retryAfter time.Duration

	// mu serializes the decision sequence of Acquire. Usage, Remaining and
	// Restrict never take it: they are read-only or intentionally unconditional.
	mu sync.Mutex
}

// New creates a Limiter enforcing cfg against store.
// Returns ErrInvalidConfig when the store is nil or the policy is malformed.
func New(store Store, cfg Config) (*Limiter, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	retryAfter := cfg.RetryAfter
	if retryAfter == 0 {
		retryAfter = cfg.Period
	}

	return &Limiter{
		store:      store,
		prefix:     cfg.Prefix + ":",
		rate:       cfg.Rate,
		period:     cfg.Period,
		retryAfter: retryAfter,
	}, nil
}

// Rate returns the configured number of permitted actions per window.
func (l *Limiter) Rate() int { return l.rate }

// Period returns the configured window length.
func (l *Limiter) Period() time.Duration { return l.period }

// RetryAfter returns the configured restriction duration.
func (l *Limiter) RetryAfter() time.Duration { return l.retryAfter }

func (l *Limiter) key(identifier, suffix string) string {
	return l.prefix + identifier + ":" + suffix
}

// Usage returns the number of actions identifier has performed in the current
// window, or 0 when no counter exists. It has no side effects.
func (l *Limiter) Usage(ctx context.Context, identifier string) (int64, error) {
	return l.store.Get(ctx, l.key(identifier, usageSuffix))
}

// Remaining returns the time left on identifier's restriction marker, or 0
// when the identifier is not restricted. It has no side effects.
func (l *Limiter) Remaining(ctx context.Context, identifier string) (time.Duration, error) {
	ttl, err := l.store.TTL(ctx, l.key(identifier, restrictSuffix))
	if err != nil {
		return 0, err
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// Restrict unconditionally places (or refreshes) a restriction marker on
// identifier for the configured retry-after duration. Any prior marker TTL is
// overwritten, even a shorter remaining one.
func (l *Limiter) Restrict(ctx context.Context, identifier string) error {
	return l.store.SetEx(ctx, l.key(identifier, restrictSuffix), 1, l.retryAfter)
}

type acquireOptions struct {
	restrictOnDeny bool
}

// AcquireOption customizes a single Acquire call.
type AcquireOption func(*acquireOptions)

// WithoutRestrict makes a denial skip creation of the restriction marker.
// The FloodWait denial is still returned, but the identifier starts a fresh
// window on its next Acquire instead of waiting out a restriction.
func WithoutRestrict() AcquireOption {
	return func(o *acquireOptions) {
		o.restrictOnDeny = false
	}
}

// Acquire admits one action for identifier or returns a *FloodWait denial.
// Any other error is a store failure, propagated unchanged; the limiter never
// falls back to admitting on store unavailability.
//
// A restricted identifier is rejected before the local lock is taken, so
// throttled callers never contend with admissible ones. Otherwise the counter
// is read and compared under the lock: once usage is strictly past the rate
// the counter is deleted, the identifier is restricted (unless WithoutRestrict
// is given) and the denial carries the configured retry-after; below that
// boundary the counter is incremented and the action admitted. An increment
// that creates the counter, or finds it without an expiry after a crash,
// starts the window by writing the observed count back with the period TTL.
func (l *Limiter) Acquire(ctx context.Context, identifier string, opts ...AcquireOption) error {
	options := acquireOptions{restrictOnDeny: true}
	for _, opt := range opts {
		opt(&options)
	}

	remaining, err := l.Remaining(ctx, identifier)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &FloodWait{Message: denialMessage, Rate: l.rate, Period: l.period, RetryAfter: remaining}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Re-check under the lock: another goroutine may have restricted the
	// identifier after the lock-free check above, and a restricted identifier
	// must never be admitted regardless of its counter value.
	remaining, err = l.Remaining(ctx, identifier)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return &FloodWait{Message: denialMessage, Rate: l.rate, Period: l.period, RetryAfter: remaining}
	}

	usage, err := l.Usage(ctx, identifier)
	if err != nil {
		return err
	}

	usageKey := l.key(identifier, usageSuffix)

	if usage > int64(l.rate) {
		if err := l.store.Del(ctx, usageKey); err != nil {
			return err
		}
		if options.restrictOnDeny {
			if err := l.Restrict(ctx, identifier); err != nil {
				return err
			}
		}
		return &FloodWait{Message: denialMessage, Rate: l.rate, Period: l.period, RetryAfter: l.retryAfter}
	}

	count, err := l.store.Incr(ctx, usageKey)
	if err != nil {
		return err
	}

	ttl, err := l.store.TTL(ctx, usageKey)
	if err != nil {
		return err
	}
	if ttl < 0 {
		if err := l.store.SetEx(ctx, usageKey, count, l.period); err != nil {
			return err
		}
	}

	return nil
}

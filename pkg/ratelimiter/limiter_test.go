package ratelimiter_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/floodgate/pkg/ratelimiter"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	valid := ratelimiter.Config{Prefix: "test", Rate: 3, Period: 10 * time.Second}

	t.Run("rejects nil store", func(t *testing.T) {
		_, err := ratelimiter.New(nil, valid)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("rejects empty prefix", func(t *testing.T) {
		cfg := valid
		cfg.Prefix = ""
		_, err := ratelimiter.New(ratelimiter.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("rejects non-positive rate", func(t *testing.T) {
		cfg := valid
		cfg.Rate = 0
		_, err := ratelimiter.New(ratelimiter.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("rejects non-positive period", func(t *testing.T) {
		cfg := valid
		cfg.Period = 0
		_, err := ratelimiter.New(ratelimiter.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("rejects negative retry after", func(t *testing.T) {
		cfg := valid
		cfg.RetryAfter = -time.Second
		_, err := ratelimiter.New(ratelimiter.NewMemoryStore(), cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	})

	t.Run("retry after defaults to period", func(t *testing.T) {
		limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), valid)
		require.NoError(t, err)
		assert.Equal(t, valid.Period, limiter.RetryAfter())
		assert.Equal(t, valid.Rate, limiter.Rate())
		assert.Equal(t, valid.Period, limiter.Period())
	})
}

func TestLimiter_FreshIdentifier(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Prefix: "fresh",
		Rate:   3,
		Period: 10 * time.Second,
	})
	require.NoError(t, err)

	usage, err := limiter.Usage(ctx, "never-seen")
	assert.NoError(t, err)
	assert.Zero(t, usage)

	remaining, err := limiter.Remaining(ctx, "never-seen")
	assert.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestLimiter_DenialBoundary(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Prefix:     "boundary",
		Rate:       3,
		Period:     10 * time.Second,
		RetryAfter: 5 * time.Second,
	})
	require.NoError(t, err)

	id := "user:1"

	// The boundary admits rate+1 actions: denial triggers only once a prior
	// increment already pushed usage strictly past the rate.
	for i := 1; i <= 4; i++ {
		require.NoError(t, limiter.Acquire(ctx, id), "acquire %d should be admitted", i)

		usage, err := limiter.Usage(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(i), usage)
	}

	err = limiter.Acquire(ctx, id)
	var fw *ratelimiter.FloodWait
	require.ErrorAs(t, err, &fw)
	assert.Equal(t, 3, fw.Rate)
	assert.Equal(t, 10*time.Second, fw.Period)
	assert.Equal(t, 5*time.Second, fw.RetryAfter)

	// Denial deletes the counter and restricts the identifier.
	usage, err := limiter.Usage(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, usage)

	remaining, err := limiter.Remaining(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, 5*time.Second)
}

func TestLimiter_RestrictedWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Prefix:     "restricted",
		Rate:       1,
		Period:     10 * time.Second,
		RetryAfter: 2 * time.Second,
	})
	require.NoError(t, err)

	id := "user:2"

	require.NoError(t, limiter.Acquire(ctx, id))
	require.NoError(t, limiter.Acquire(ctx, id))

	var fw *ratelimiter.FloodWait
	require.ErrorAs(t, limiter.Acquire(ctx, id), &fw)

	// While the marker lives, every acquire is denied with the marker's live
	// TTL and the usage counter is never touched.
	for range 3 {
		remaining, err := limiter.Remaining(ctx, id)
		require.NoError(t, err)
		require.Greater(t, remaining, time.Duration(0))

		err = limiter.Acquire(ctx, id)
		require.ErrorAs(t, err, &fw)
		assert.Greater(t, fw.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, fw.RetryAfter, 2*time.Second)

		usage, err := limiter.Usage(ctx, id)
		require.NoError(t, err)
		assert.Zero(t, usage)
	}
}

func TestLimiter_WithoutRestrict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Prefix: "norestrict",
		Rate:   1,
		Period: 10 * time.Second,
	})
	require.NoError(t, err)

	id := "user:3"

	require.NoError(t, limiter.Acquire(ctx, id))
	require.NoError(t, limiter.Acquire(ctx, id))

	var fw *ratelimiter.FloodWait
	require.ErrorAs(t, limiter.Acquire(ctx, id, ratelimiter.WithoutRestrict()), &fw)
	assert.Equal(t, 10*time.Second, fw.RetryAfter)

	// No marker was created, so the identifier starts a fresh window at once.
	remaining, err := limiter.Remaining(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	require.NoError(t, limiter.Acquire(ctx, id))

	usage, err := limiter.Usage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage)
}

func TestLimiter_WindowExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Prefix: "expiry",
		Rate:   3,
		Period: 150 * time.Millisecond,
	})
	require.NoError(t, err)

	id := "user:4"

	require.NoError(t, limiter.Acquire(ctx, id))
	require.NoError(t, limiter.Acquire(ctx, id))

	time.Sleep(200 * time.Millisecond)

	// The counter expired naturally, so the next acquire opens a new window.
	require.NoError(t, limiter.Acquire(ctx, id))

	usage, err := limiter.Usage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage)
}

func TestLimiter_Restrict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	limiter, err := ratelimiter.New(ratelimiter.NewMemoryStore(), ratelimiter.Config{
		Prefix:     "manual",
		Rate:       3,
		Period:     10 * time.Second,
		RetryAfter: time.Second,
	})
	require.NoError(t, err)

	id := "user:5"

	require.NoError(t, limiter.Restrict(ctx, id))

	remaining, err := limiter.Remaining(ctx, id)
	require.NoError(t, err)
	require.Greater(t, remaining, time.Duration(0))

	time.Sleep(300 * time.Millisecond)

	shorter, err := limiter.Remaining(ctx, id)
	require.NoError(t, err)
	require.Less(t, shorter, remaining)

	// Restricting again overwrites the shorter remaining TTL with a full one.
	require.NoError(t, limiter.Restrict(ctx, id))

	refreshed, err := limiter.Remaining(ctx, id)
	require.NoError(t, err)
	assert.Greater(t, refreshed, shorter)
	assert.LessOrEqual(t, refreshed, time.Second)
}

// faultyStore wraps a Store and fails a chosen operation, to verify that store
// failures propagate unchanged instead of turning into admission decisions.
type faultyStore struct {
	ratelimiter.Store
	err error
}

func (s *faultyStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, s.err
}

func TestLimiter_StoreFailurePropagates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storeErr := errors.New("connection refused")
	store := &faultyStore{Store: ratelimiter.NewMemoryStore(), err: storeErr}

	limiter, err := ratelimiter.New(store, ratelimiter.Config{
		Prefix: "faulty",
		Rate:   3,
		Period: 10 * time.Second,
	})
	require.NoError(t, err)

	err = limiter.Acquire(ctx, "user:6")
	require.ErrorIs(t, err, storeErr)

	var fw *ratelimiter.FloodWait
	assert.False(t, errors.As(err, &fw), "a store failure must not look like a denial")
}

func TestFloodWait_Serialization(t *testing.T) {
	t.Parallel()

	fw := &ratelimiter.FloodWait{
		Message:    "rate limit exceeded",
		Rate:       3,
		Period:     10 * time.Second,
		RetryAfter: 7 * time.Second,
	}

	assert.Equal(t, "rate limit exceeded: retry after 7s", fw.Error())

	m := fw.Map()
	assert.Equal(t, "rate limit exceeded", m["message"])
	assert.Equal(t, "3/10", m["rate"])
	assert.Equal(t, 7, m["retry_after"])

	data, err := fw.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"rate limit exceeded","rate":"3/10","retry_after":7}`, string(data))

	assert.Equal(t, 7, fw.RetryAfterSeconds())
}

func TestFloodWait_SubSecondRetryRoundsUp(t *testing.T) {
	t.Parallel()

	// A restriction marker with under a second left is still in force, so the
	// denial must never advertise a zero wait.
	fw := &ratelimiter.FloodWait{
		Message:    "rate limit exceeded",
		Rate:       3,
		Period:     10 * time.Second,
		RetryAfter: 300 * time.Millisecond,
	}

	assert.Equal(t, 1, fw.RetryAfterSeconds())
	assert.Equal(t, "rate limit exceeded: retry after 1s", fw.Error())
	assert.Equal(t, 1, fw.Map()["retry_after"])

	partial := &ratelimiter.FloodWait{RetryAfter: 4200 * time.Millisecond}
	assert.Equal(t, 5, partial.RetryAfterSeconds())

	zero := &ratelimiter.FloodWait{}
	assert.Equal(t, 0, zero.RetryAfterSeconds())
}

package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// entry is a single stored value with an optional expiry.
type entry struct {
	value     int64
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store with an in-process map. Expiry semantics match
// Redis closely enough for the limiter: expired entries behave as absent, and
// TTL reports -1 for a key without expiry and -2 for a missing key.
//
// It serves deterministic tests and single-process deployments. For anything
// shared across processes use RedisStore instead.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry

	// Configuration
	cleanupInterval time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	// State management
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	// Observability metrics
	entriesCreated atomic.Int64
	entriesExpired atomic.Int64
}

// MemoryStoreStats provides observability metrics for monitoring and debugging.
type MemoryStoreStats struct {
	EntriesCreated int64 // Total number of entries created
	EntriesExpired int64 // Total number of expired entries removed
	ActiveEntries  int   // Current number of live entries
	IsRunning      bool  // Whether the cleanup goroutine is running
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets the interval for sweeping expired entries.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// WithMemoryStoreShutdownTimeout sets the graceful shutdown timeout.
func WithMemoryStoreShutdownTimeout(timeout time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if timeout > 0 {
			ms.shutdownTimeout = timeout
		}
	}
}

// WithMemoryStoreLogger sets the logger for internal operations.
func WithMemoryStoreLogger(logger *slog.Logger) MemoryStoreOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// NewMemoryStore creates a new in-memory store. Expired entries are dropped
// lazily on access; call Start() to additionally sweep them in the background.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		entries:         make(map[string]*entry),
		cleanupInterval: 5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(ms)
	}

	return ms
}

// Get returns the value of key, or 0 when it is absent or expired.
func (ms *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, exists := ms.entries[key]
	if !exists || e.expired(time.Now()) {
		return 0, nil
	}
	return e.value, nil
}

// Incr increments key and returns the new value, creating it at 1 (with no
// expiry, again matching Redis INCR) when absent or expired.
func (ms *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, exists := ms.entries[key]
	if !exists || e.expired(time.Now()) {
		ms.entries[key] = &entry{value: 1}
		ms.entriesCreated.Add(1)
		return 1, nil
	}

	e.value++
	return e.value, nil
}

// SetEx sets key to value with the given time to live, replacing any existing
// value and expiry.
func (ms *MemoryStore) SetEx(ctx context.Context, key string, value int64, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.entries[key]; !exists {
		ms.entriesCreated.Add(1)
	}
	ms.entries[key] = &entry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// TTL reports the remaining time to live of key: -1 when the key exists
// without an expiry, -2 when it does not exist (or has already expired).
func (ms *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	now := time.Now()
	e, exists := ms.entries[key]
	if !exists || e.expired(now) {
		return -2, nil
	}
	if e.expiresAt.IsZero() {
		return -1, nil
	}
	return e.expiresAt.Sub(now), nil
}

// Del removes key. Deleting an absent key is a no-op.
func (ms *MemoryStore) Del(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.entries, key)
	return nil
}

// Start begins the background cleanup goroutine. This is a blocking operation
// that runs until the context is cancelled. Use Run() for errgroup pattern or
// call this in a goroutine.
func (ms *MemoryStore) Start(ctx context.Context) error {
	ms.mu.Lock()
	if ms.cancel != nil {
		ms.mu.Unlock()
		return fmt.Errorf("memory store already started")
	}

	if ms.cleanupInterval <= 0 {
		ms.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v (use WithCleanupInterval to configure)", ms.cleanupInterval)
	}

	ms.ctx, ms.cancel = context.WithCancel(ctx)
	ms.mu.Unlock()

	ms.running.Store(true)
	defer ms.running.Store(false)

	ms.logger.InfoContext(ms.ctx, "memory store cleanup started",
		slog.Duration("cleanup_interval", ms.cleanupInterval))

	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			ms.logger.InfoContext(context.Background(), "memory store cleanup stopping")
			return ms.ctx.Err()
		case <-ticker.C:
			ms.cleanupWithWait()
		}
	}
}

// Stop gracefully shuts down the background cleanup with a timeout.
// Returns an error if the shutdown timeout is exceeded.
func (ms *MemoryStore) Stop() error {
	ms.mu.Lock()
	if ms.cancel == nil {
		ms.mu.Unlock()
		return fmt.Errorf("memory store not started")
	}

	cancel := ms.cancel
	ms.cancel = nil
	ms.mu.Unlock()

	cancel()

	ms.logger.InfoContext(context.Background(), "memory store stopping, waiting for cleanup to complete",
		slog.Duration("timeout", ms.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), ms.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		ms.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		ms.logger.InfoContext(context.Background(), "memory store stopped cleanly")
		return nil
	case <-ctx.Done():
		ms.logger.WarnContext(context.Background(), "memory store shutdown timeout exceeded",
			slog.Duration("timeout", ms.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", ms.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// Returns a function that starts the cleanup, monitors context cancellation,
// and performs graceful shutdown when the context is cancelled.
func (ms *MemoryStore) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- ms.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = ms.Stop() // Ignore stop error in normal shutdown
			<-errCh       // Wait for Start() to exit
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// cleanupWithWait is a wrapper around removeExpired that tracks the operation
// with WaitGroup so Stop can wait for an in-progress sweep.
func (ms *MemoryStore) cleanupWithWait() {
	ms.mu.RLock()
	if ms.cancel == nil {
		ms.mu.RUnlock()
		return
	}
	ms.wg.Add(1)
	ms.mu.RUnlock()

	defer ms.wg.Done()
	ms.removeExpired()
}

// removeExpired drops entries whose expiry has passed. Lazy expiry on access
// already keeps reads correct; the sweep only bounds memory growth for keys
// that are never touched again.
func (ms *MemoryStore) removeExpired() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()

	removed := 0
	for key, e := range ms.entries {
		if e.expired(now) {
			delete(ms.entries, key)
			removed++
		}
	}

	if removed > 0 {
		ms.entriesExpired.Add(int64(removed))
	}
}

// Stats returns current memory store statistics for observability and
// monitoring. This method is thread-safe and can be called at any time.
func (ms *MemoryStore) Stats() MemoryStoreStats {
	ms.mu.RLock()
	isRunning := ms.cancel != nil
	activeEntries := len(ms.entries)
	ms.mu.RUnlock()

	return MemoryStoreStats{
		EntriesCreated: ms.entriesCreated.Load(),
		EntriesExpired: ms.entriesExpired.Load(),
		ActiveEntries:  activeEntries,
		IsRunning:      isRunning,
	}
}

// Healthcheck validates that the memory store is operational.
// Returns nil if healthy, or an error describing the health issue.
func (ms *MemoryStore) Healthcheck(ctx context.Context) error {
	stats := ms.Stats()

	if ms.cleanupInterval > 0 && !stats.IsRunning {
		return fmt.Errorf("cleanup is configured but not running")
	}

	return nil
}

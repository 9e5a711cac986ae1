// Package redis provides Redis client initialization and health checking for
// the floodgate rate limiter's shared counter store.
//
// It wraps the go-redis client with URL validation, bounded retry logic and a
// connectivity check, so callers get back a client that is known to be
// reachable or a descriptive error.
//
// # Configuration
//
// All configuration is handled through the Config struct with environment
// variable mapping, loadable via the core/config package:
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//	}
//
// Both redis:// and rediss:// (TLS) URL schemes are supported.
//
// # Usage
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal("failed to connect to redis:", err)
//	}
//	defer client.Close()
//
//	store := ratelimiter.NewRedisStore(client)
//	limiter, err := ratelimiter.New(store, ratelimiter.Config{
//		Prefix: "api_rate_limit",
//		Rate:   100,
//		Period: time.Hour,
//	})
//
// # Health Checks
//
//	check := redis.Healthcheck(client)
//	if err := check(ctx); err != nil {
//		// report unhealthy
//	}
package redis

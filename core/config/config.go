package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// cache maps a configuration struct type to its loaded value, so each
	// type is parsed from the environment exactly once per process.
	cache sync.Map // reflect.Type -> any

	dotenvOnce sync.Once
)

// Load populates cfg from environment variables using its `env` struct tags.
// A .env file in the working directory is loaded into the environment on
// first use; a missing file is not an error. Each configuration type is
// parsed once and cached: subsequent calls for the same type return the
// cached value regardless of later environment changes.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	if cached, ok := cache.Load(typ); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to load config %s: %w", typ, err)
	}

	actual, _ := cache.LoadOrStore(typ, *cfg)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics on failure. Useful during application
// startup where a missing required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

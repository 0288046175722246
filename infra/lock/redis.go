package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	corelock "github.com/medbot/rounds/core/lock"
)

// Config selects the trigger lock backend.
type Config struct {
	// Backend is "memory" or "redis".
	Backend  string `json:"backend"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// Prefix is prepended to every key, letting several sites share one Redis.
	Prefix string `json:"prefix"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "redis" && c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory", "redis":
		return nil
	}
	return fmt.Errorf("unknown lock backend %s", c.Backend)
}

// RedisLocker implements corelock.Locker with SET NX.
type RedisLocker struct {
	client redis.Cmdable
	prefix string
}

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

// Add implements corelock.Locker.
func (l *RedisLocker) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}

// New builds the Locker described by cfg. The returned close function
// releases the Redis connection pool.
func New(ctx context.Context, cfg Config) (corelock.Locker, func() error, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Backend == "memory" {
		return corelock.NewMemoryLocker(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLocker(client, cfg.Prefix), client.Close, nil
}

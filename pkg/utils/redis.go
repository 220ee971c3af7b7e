package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errNilRedis = errors.New("redis client is nil")

// RedisConfig holds the client settings the service tunes. Zero values fall
// back to defaults sized for a single API process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout time.Duration
	// IOTimeout applies to both reads and writes.
	IOTimeout   time.Duration
	PoolSize    int
	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 3 * time.Second
	}
	if c.IOTimeout <= 0 {
		c.IOTimeout = 2 * time.Second
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 20
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = 2 * time.Second
	}
	return c
}

// OpenRedis returns a client that has answered PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg = cfg.withDefaults()

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.IOTimeout,
		WriteTimeout:    cfg.IOTimeout,
		PoolSize:        cfg.PoolSize,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// KEYS[1] counter, ARGV[1] limit, ARGV[2] ttl in ms. Returns 1 when a slot was taken.
var capAcquire = redis.NewScript(`
local held = tonumber(redis.call('GET', KEYS[1]) or '0')
if held >= tonumber(ARGV[1]) then
  return 0
end
redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return 1
`)

// KEYS[1] counter. The key is removed once no slot is held.
var capRelease = redis.NewScript(`
local held = redis.call('DECR', KEYS[1])
if held <= 0 then
  redis.call('DEL', KEYS[1])
end
return held
`)

// AcquireConcurrencyCap takes one of limit slots under key. Each acquire
// resets the TTL, which bounds how long slots of a crashed holder survive;
// long-lived holders call RefreshConcurrencyCap before it lapses.
func AcquireConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string, limit int, ttl time.Duration) (bool, error) {
	switch {
	case rdb == nil:
		return false, errNilRedis
	case key == "":
		return false, errors.New("cap key is required")
	case limit <= 0:
		return false, fmt.Errorf("cap limit must be positive, got %d", limit)
	case ttl <= 0:
		return false, fmt.Errorf("cap ttl must be positive, got %s", ttl)
	}

	taken, err := capAcquire.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire cap %s: %w", key, err)
	}
	return taken == 1, nil
}

func ReleaseConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string) error {
	if rdb == nil {
		return errNilRedis
	}
	if key == "" {
		return errors.New("cap key is required")
	}
	if err := capRelease.Run(ctx, rdb, []string{key}).Err(); err != nil {
		return fmt.Errorf("release cap %s: %w", key, err)
	}
	return nil
}

// RefreshConcurrencyCap extends the TTL on key without taking a slot.
func RefreshConcurrencyCap(ctx context.Context, rdb redis.Cmdable, key string, ttl time.Duration) error {
	if rdb == nil {
		return errNilRedis
	}
	return rdb.PExpire(ctx, key, ttl).Err()
}

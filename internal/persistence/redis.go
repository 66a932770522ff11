package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/grievance-desk/sla-service/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Lease is a held SET NX lock.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// AcquireLease takes key for ttl. ok is false when another holder owns it.
func (r *Redis) AcquireLease(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	if r == nil || r.Client == nil {
		return nil, false, errors.New("redis client not configured")
	}
	token := uuid.NewString()
	ok, err := r.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{client: r.Client, key: key, token: token}, true, nil
}

// Release frees the lease if it has not expired and been taken over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}

// CycleLease adapts a Redis lease on a fixed key to the worker's cycle lock.
type CycleLease struct {
	redis *Redis
	key   string
	ttl   time.Duration
}

// NewCycleLease returns a lock on key held for at most ttl per cycle.
func NewCycleLease(r *Redis, key string, ttl time.Duration) *CycleLease {
	return &CycleLease{redis: r, key: key, ttl: ttl}
}

// TryLock acquires the lease without waiting.
func (c *CycleLease) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	lease, ok, err := c.redis.AcquireLease(ctx, c.key, c.ttl)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lease.Release, true, nil
}

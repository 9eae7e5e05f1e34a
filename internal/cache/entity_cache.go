package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vaidashi/backoffice-api/internal/config"
	"github.com/vaidashi/backoffice-api/internal/models"
)

const (
	keyPrefix  = "backoffice:entity"
	guardKey   = "backoffice:invalidated"
	defaultTTL = 5 * time.Minute

	// defaultHoldoff is how long Set refuses to repopulate an entry after
	// it was invalidated. A read that loaded the row before the change
	// committed cannot store it back inside this window.
	defaultHoldoff = 5 * time.Second
)

// setUnlessInvalidated writes KEYS[1] only if its guard KEYS[2] has expired.
var setUnlessInvalidated = redis.NewScript(`
if redis.call("EXISTS", KEYS[2]) == 1 then
	return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// EntityCache caches entity reads. A status change invalidates the entry on
// every instance through the status event consumer.
type EntityCache interface {
	Get(ctx context.Context, kind models.EntityKind, id string, dest interface{}) (bool, error)
	Set(ctx context.Context, kind models.EntityKind, id string, value interface{}) error
	Invalidate(ctx context.Context, kind models.EntityKind, id string) error
	Close() error
}

type redisEntityCache struct {
	client  *redis.Client
	ttl     time.Duration
	holdoff time.Duration
}

type noopEntityCache struct{}

// NewEntityCache returns a Redis backed cache, or a no-op one when caching is disabled.
func NewEntityCache(cfg config.CacheConfig) (EntityCache, error) {
	if !cfg.Enabled {
		return NewNoopEntityCache(), nil
	}

	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisEntityCache(client, cfg.TTL), nil
}

// NewRedisEntityCache wraps an existing client
func NewRedisEntityCache(client *redis.Client, ttl time.Duration) EntityCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisEntityCache{client: client, ttl: ttl, holdoff: defaultHoldoff}
}

// NewNoopEntityCache returns a cache that never hits
func NewNoopEntityCache() EntityCache {
	return &noopEntityCache{}
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	addr := cfg.Addr
	if addr == "" {
		addr = net.JoinHostPort("127.0.0.1", strconv.Itoa(6379))
	}

	return &redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}, nil
}

func entityKey(kind models.EntityKind, id string) string {
	return keyPrefix + ":" + string(kind) + ":" + id
}

func invalidationKey(kind models.EntityKind, id string) string {
	return guardKey + ":" + string(kind) + ":" + id
}

func (c *redisEntityCache) Get(ctx context.Context, kind models.EntityKind, id string, dest interface{}) (bool, error) {
	payload, err := c.client.Get(ctx, entityKey(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(payload, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", kind, err)
	}
	return true, nil
}

func (c *redisEntityCache) Set(ctx context.Context, kind models.EntityKind, id string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s for cache: %w", kind, err)
	}

	keys := []string{entityKey(kind, id), invalidationKey(kind, id)}
	if err := setUnlessInvalidated.Run(ctx, c.client, keys, payload, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisEntityCache) Invalidate(ctx context.Context, kind models.EntityKind, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, invalidationKey(kind, id), 1, c.holdoff)
		pipe.Del(ctx, entityKey(kind, id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func (c *redisEntityCache) Close() error {
	return c.client.Close()
}

func (noopEntityCache) Get(context.Context, models.EntityKind, string, interface{}) (bool, error) {
	return false, nil
}

func (noopEntityCache) Set(context.Context, models.EntityKind, string, interface{}) error {
	return nil
}

func (noopEntityCache) Invalidate(context.Context, models.EntityKind, string) error {
	return nil
}

func (noopEntityCache) Close() error { return nil }

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vaidashi/backoffice-api/internal/config"
	"github.com/vaidashi/backoffice-api/internal/models"
)

func TestBuildRedisOptions(t *testing.T) {
	opts, err := buildRedisOptions(config.CacheConfig{RedisURL: "redis://:pw@cache:6380/2"})
	if err != nil {
		t.Fatalf("buildRedisOptions() error = %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "pw" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}

	opts, err = buildRedisOptions(config.CacheConfig{Addr: "r:6379", DB: 1})
	if err != nil || opts.Addr != "r:6379" || opts.DB != 1 {
		t.Fatalf("unexpected options %+v, %v", opts, err)
	}

	if _, err := buildRedisOptions(config.CacheConfig{RedisURL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed url")
	}
}

func TestDisabledCacheNeverHits(t *testing.T) {
	c, err := NewEntityCache(config.CacheConfig{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}

	_ = c.Set(context.Background(), models.KindOrder, "ord-1", map[string]string{"status": "new"})
	var dest map[string]string
	if hit, err := c.Get(context.Background(), models.KindOrder, "ord-1", &dest); hit || err != nil {
		t.Fatalf("Get() = %v, %v, want miss", hit, err)
	}
}

func testRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("set TEST_REDIS_URL to run redis integration tests")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatal(err)
	}
	client := redis.NewClient(opts)
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatal(err)
	}
	return client
}

func TestRedisEntityCache(t *testing.T) {
	c := &redisEntityCache{client: testRedis(t), ttl: time.Minute, holdoff: 50 * time.Millisecond}
	defer c.Close()
	ctx := context.Background()

	in := models.SupportRequest{ID: "sr-1", Status: models.SupportRequestStatusPending}
	if err := c.Set(ctx, models.KindSupportRequest, in.ID, in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var out models.SupportRequest
	if hit, err := c.Get(ctx, models.KindSupportRequest, in.ID, &out); !hit || err != nil || out.Status != in.Status {
		t.Fatalf("Get() = %v, %v, %+v", hit, err, out)
	}

	if err := c.Invalidate(ctx, models.KindSupportRequest, in.ID); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if hit, _ := c.Get(ctx, models.KindSupportRequest, in.ID, &out); hit {
		t.Fatal("entry still cached after Invalidate")
	}
}

func TestStaleReadCannotRepopulateAfterInvalidate(t *testing.T) {
	c := &redisEntityCache{client: testRedis(t), ttl: time.Minute, holdoff: time.Second}
	defer c.Close()
	ctx := context.Background()

	// A reader loaded the order before the transition committed...
	stale := models.Order{ID: "ord-1", Status: models.OrderStatusNew}

	// ...the transition commits and invalidates...
	if err := c.Invalidate(ctx, models.KindOrder, stale.ID); err != nil {
		t.Fatal(err)
	}

	// ...and only then does the reader store what it loaded.
	if err := c.Set(ctx, models.KindOrder, stale.ID, stale); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var out models.Order
	if hit, _ := c.Get(ctx, models.KindOrder, stale.ID, &out); hit {
		t.Fatalf("stale order cached with status %q", out.Status)
	}
}

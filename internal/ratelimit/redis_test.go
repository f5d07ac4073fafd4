package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStoreIncr(t *testing.T) {
	store, _ := setupRedisTest(t)

	for want := int64(1); want <= 3; want++ {
		count, ttl, err := store.Incr(context.Background(), "ratelimit:login:10.0.0.1", time.Minute)
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if count != want {
			t.Errorf("expected count %d, got %d", want, count)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Errorf("expected a ttl within the window, got %v", ttl)
		}
	}
}

func TestRedisStoreWindowExpiry(t *testing.T) {
	store, mr := setupRedisTest(t)

	if _, _, err := store.Incr(context.Background(), "ratelimit:login:10.0.0.1", time.Minute); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if _, _, err := store.Incr(context.Background(), "ratelimit:login:10.0.0.1", time.Minute); err != nil {
		t.Fatalf("Incr failed: %v", err)
	}

	mr.FastForward(61 * time.Second)

	count, _, err := store.Incr(context.Background(), "ratelimit:login:10.0.0.1", time.Minute)
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected the counter to restart after expiry, got %d", count)
	}
}

func TestRedisStoreRearmsMissingTTL(t *testing.T) {
	store, mr := setupRedisTest(t)

	// A counter left behind without a TTL must not throttle forever
	mr.Set("ratelimit:login:10.0.0.1", "7")

	count, ttl, err := store.Incr(context.Background(), "ratelimit:login:10.0.0.1", time.Minute)
	if err != nil {
		t.Fatalf("Incr failed: %v", err)
	}
	if count != 8 {
		t.Errorf("expected count 8, got %d", count)
	}
	if ttl != time.Minute {
		t.Errorf("expected the window to be re-armed, got %v", ttl)
	}
}

func TestLimiterWithRedisStore(t *testing.T) {
	store, _ := setupRedisTest(t)
	limiter := NewLimiter(store, Rule{Name: "login", Limit: 5, Window: 15 * time.Minute})

	for i := 0; i < 5; i++ {
		result, err := limiter.Allow(context.Background(), "login", "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("attempt %d: expected to be allowed", i+1)
		}
	}

	result, err := limiter.Allow(context.Background(), "login", "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected the sixth attempt to be denied")
	}
	if result.RetryAfter <= 0 {
		t.Errorf("expected a positive retry-after, got %v", result.RetryAfter)
	}
}

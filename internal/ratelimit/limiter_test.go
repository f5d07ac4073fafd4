package ratelimit

import (
	"context"
	"testing"
	"time"
)

func setupLimiterTest(t *testing.T) (*Limiter, *MemoryStore, *time.Time) {
	t.Helper()

	now := time.Now()
	store := NewMemoryStore()
	store.now = func() time.Time { return now }

	limiter := NewLimiter(store,
		Rule{Name: "login", Limit: 5, Window: 15 * time.Minute},
		Rule{Name: "register", Limit: 3, Window: time.Hour},
	)
	return limiter, store, &now
}

func TestLimiterAllowsWithinLimit(t *testing.T) {
	limiter, _, _ := setupLimiterTest(t)

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
	if result.RetryAfter <= 0 || result.RetryAfter > 15*time.Minute {
		t.Errorf("expected a retry-after within the window, got %v", result.RetryAfter)
	}
}

func TestLimiterKeysPerAddress(t *testing.T) {
	limiter, _, _ := setupLimiterTest(t)

	for i := 0; i < 5; i++ {
		if _, err := limiter.Allow(context.Background(), "login", "10.0.0.1"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	// A different address has its own counter
	result, err := limiter.Allow(context.Background(), "login", "10.0.0.2")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected a fresh address to be allowed")
	}
}

func TestLimiterKeysPerRule(t *testing.T) {
	limiter, _, _ := setupLimiterTest(t)

	for i := 0; i < 3; i++ {
		if _, err := limiter.Allow(context.Background(), "register", "10.0.0.1"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	result, err := limiter.Allow(context.Background(), "register", "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if result.Allowed {
		t.Fatal("expected the fourth registration to be denied")
	}

	// The login counter for the same address is untouched
	result, err = limiter.Allow(context.Background(), "login", "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected the login rule to still allow")
	}
}

func TestLimiterWindowReset(t *testing.T) {
	limiter, _, now := setupLimiterTest(t)

	for i := 0; i < 6; i++ {
		if _, err := limiter.Allow(context.Background(), "login", "10.0.0.1"); err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
	}

	// Past the window the counter starts over
	*now = now.Add(16 * time.Minute)

	result, err := limiter.Allow(context.Background(), "login", "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !result.Allowed {
		t.Fatal("expected a new window after the old one elapsed")
	}
}

func TestLimiterUnknownRuleAllows(t *testing.T) {
	limiter, _, _ := setupLimiterTest(t)

	for i := 0; i < 50; i++ {
		result, err := limiter.Allow(context.Background(), "unknown", "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !result.Allowed {
			t.Fatal("expected unknown rules to always allow")
		}
	}
}

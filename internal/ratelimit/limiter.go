package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Rule is a named fixed-window limit, e.g. 5 login attempts per 15 minutes.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Result reports a limiter decision. RetryAfter is only meaningful when
// Allowed is false.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter throttles requests per source address with fixed windows. Counters
// live in the injected Store so the backend can be swapped (process-local
// map, shared Redis) without touching call sites.
type Limiter struct {
	store Store
	rules map[string]Rule
}

func NewLimiter(store Store, rules ...Rule) *Limiter {
	byName := make(map[string]Rule, len(rules))
	for _, rule := range rules {
		byName[rule.Name] = rule
	}
	return &Limiter{store: store, rules: byName}
}

// Allow counts one request from ip against the named rule and reports
// whether it is within the limit. Unknown rules always allow.
func (l *Limiter) Allow(ctx context.Context, rule, ip string) (Result, error) {
	r, ok := l.rules[rule]
	if !ok {
		return Result{Allowed: true}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%s", rule, ip)
	count, ttl, err := l.store.Incr(ctx, key, r.Window)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count request: %w", err)
	}

	if count > int64(r.Limit) {
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true}, nil
}

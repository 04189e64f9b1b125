package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether a request from the given identity may proceed.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds the rate-limit settings for one service tier.
type TierConfig struct {
	RequestsPerMinute int
}

// InProcessLimiter is a sliding-window rate limiter that tracks request
// counts per subject in memory. It fails open: when no limit applies to a
// tier, requests pass.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int
	mu         sync.Mutex
	windows    map[string]*window
}

type window struct {
	count     int
	startedAt time.Time
}

// NewInProcessLimiter creates a limiter with per-tier overrides. Tiers with
// no entry use defaultRPM; a nonpositive limit disables limiting for that
// tier.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		windows:    make(map[string]*window),
	}
}

// Allow checks whether the identity is within its per-minute budget.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.Tier
	if tier == "" {
		tier = "default"
	}

	rpm := l.defaultRPM
	if tc, ok := l.tiers[tier]; ok {
		rpm = tc.RequestsPerMinute
	}

	if rpm <= 0 {
		return nil // no limit
	}

	key := identity.Subject + ":" + tier

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.Sub(w.startedAt) >= time.Minute {
		l.windows[key] = &window{count: 1, startedAt: now}
		return nil
	}

	w.count++
	if w.count > rpm {
		return ErrTooManyRequests
	}

	return nil
}

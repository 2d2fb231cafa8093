// Package ratelimit bounds request rates per client IP using a sliding
// window. Two counters run independently: a general one for all traffic and
// a stricter one for authentication endpoints. Exhausting the login counter
// places a temporary block on the IP that outlives the window.
package ratelimit

import (
	"context"
	"time"
)

// Store is the counter backend. Record appends an event for a key and
// returns how many events remain inside the trailing window.
type Store interface {
	Record(ctx context.Context, key string, window time.Duration) (int, error)
	Blocked(ctx context.Context, ip string) (bool, error)
	Block(ctx context.Context, ip string, duration time.Duration) error
}

type Config struct {
	Limit         int
	Window        time.Duration
	LoginLimit    int
	LoginWindow   time.Duration
	BlockDuration time.Duration
}

type Limiter struct {
	store Store
	cfg   Config
}

func New(store Store, cfg Config) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

// Allow records a request for the general counter and reports whether it
// fits the window. Blocked IPs are always refused.
func (l *Limiter) Allow(ctx context.Context, ip string) (bool, error) {
	blocked, err := l.store.Blocked(ctx, ip)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}
	count, err := l.store.Record(ctx, "general:"+ip, l.cfg.Window)
	if err != nil {
		return false, err
	}
	return count <= l.cfg.Limit, nil
}

// AllowLogin records an authentication attempt. Exceeding the login limit
// blocks the IP for the configured duration, independent of the general
// counter.
func (l *Limiter) AllowLogin(ctx context.Context, ip string) (bool, error) {
	blocked, err := l.store.Blocked(ctx, ip)
	if err != nil {
		return false, err
	}
	if blocked {
		return false, nil
	}
	count, err := l.store.Record(ctx, "login:"+ip, l.cfg.LoginWindow)
	if err != nil {
		return false, err
	}
	if count > l.cfg.LoginLimit {
		if err := l.store.Block(ctx, ip, l.cfg.BlockDuration); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

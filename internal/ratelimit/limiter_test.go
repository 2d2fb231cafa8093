package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

func newTestLimiter(store Store) *Limiter {
	return New(store, Config{
		Limit:         5,
		Window:        time.Minute,
		LoginLimit:    3,
		LoginWindow:   time.Minute,
		BlockDuration: 10 * time.Minute,
	})
}

func TestAllowWithinLimit(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	ok, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if ok {
		t.Fatalf("request over the limit should be refused")
	}
}

func TestAllowIsPerIP(t *testing.T) {
	limiter := newTestLimiter(NewMemoryStore())
	for i := 0; i < 6; i++ {
		_, _ = limiter.Allow(ctx, "1.1.1.1")
	}
	ok, err := limiter.Allow(ctx, "2.2.2.2")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !ok {
		t.Fatalf("a different IP must not inherit another IP's counter")
	}
}

func TestWindowSlides(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	limiter := newTestLimiter(store)

	for i := 0; i < 6; i++ {
		_, _ = limiter.Allow(ctx, "1.2.3.4")
	}
	if ok, _ := limiter.Allow(ctx, "1.2.3.4"); ok {
		t.Fatalf("expected refusal inside the window")
	}

	current = current.Add(time.Minute + time.Second)
	ok, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !ok {
		t.Fatalf("expected recovery after the window slides past old events")
	}
}

func TestLoginLimitTriggersBlock(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }
	limiter := newTestLimiter(store)

	for i := 0; i < 3; i++ {
		ok, err := limiter.AllowLogin(ctx, "9.9.9.9")
		if err != nil {
			t.Fatalf("allow login: %v", err)
		}
		if !ok {
			t.Fatalf("login attempt %d should be allowed", i+1)
		}
	}

	if ok, _ := limiter.AllowLogin(ctx, "9.9.9.9"); ok {
		t.Fatalf("fourth login attempt should be refused")
	}

	// Block applies to general traffic too, and outlives the login window.
	if ok, _ := limiter.Allow(ctx, "9.9.9.9"); ok {
		t.Fatalf("blocked IP must be refused on general routes")
	}

	current = current.Add(10*time.Minute + time.Second)
	ok, err := limiter.AllowLogin(ctx, "9.9.9.9")
	if err != nil {
		t.Fatalf("allow login: %v", err)
	}
	if !ok {
		t.Fatalf("expected logins to succeed again after the block elapses")
	}
}

func TestMemoryStorePruneDropsStaleKeys(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	_, _ = store.Record(ctx, "general:1.2.3.4", time.Minute)
	_ = store.Block(ctx, "1.2.3.4", time.Minute)

	current = current.Add(2 * time.Minute)
	store.prune()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.events) != 0 {
		t.Errorf("expected stale event keys to be pruned, have %d", len(store.events))
	}
	if len(store.blocks) != 0 {
		t.Errorf("expected expired blocks to be pruned, have %d", len(store.blocks))
	}
}

func TestRedisStoreWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := newTestLimiter(NewRedisStore(client))

	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(ctx, "4.4.4.4")
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := limiter.Allow(ctx, "4.4.4.4"); ok {
		t.Fatalf("request over the limit should be refused")
	}
}

func TestRedisStoreBlockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStore(client)
	if err := store.Block(ctx, "5.5.5.5", time.Minute); err != nil {
		t.Fatalf("block: %v", err)
	}
	if blocked, _ := store.Blocked(ctx, "5.5.5.5"); !blocked {
		t.Fatalf("expected IP to be blocked")
	}

	mr.FastForward(2 * time.Minute)

	if blocked, _ := store.Blocked(ctx, "5.5.5.5"); blocked {
		t.Fatalf("expected block to expire")
	}
}

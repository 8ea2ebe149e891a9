package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestLocal(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	lease, err := l.Acquire(ctx, "tick", time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := l.Acquire(ctx, "tick", time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}

	if _, err := l.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("independent key must be free, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatal(err)
	}
	// A second release must not free a lock taken by someone else.
	next, err := l.Acquire(ctx, "tick", time.Minute)
	if err != nil {
		t.Fatalf("expected lock to be free, got %v", err)
	}
	_ = lease.Release(ctx)
	if _, err := l.Acquire(ctx, "tick", time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("stale release freed the lock: %v", err)
	}
	_ = next.Release(ctx)
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	client, err := NewRedisClient(ctx, RedisConfig{URL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer client.Close()

	l := NewRedis(client)

	lease, err := l.Acquire(ctx, "tick", time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if _, err := l.Acquire(ctx, "tick", time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("want ErrLocked, got %v", err)
	}

	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	again, err := l.Acquire(ctx, "tick", time.Minute)
	if err != nil {
		t.Fatalf("expected lock to be free after release, got %v", err)
	}

	// The first lease no longer owns the key.
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := l.Acquire(ctx, "tick", time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("stale release freed the lock: %v", err)
	}

	_ = again.Release(ctx)
}

func TestRedisLockExpires(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)

	client, err := NewRedisClient(ctx, RedisConfig{URL: "redis://" + srv.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	l := NewRedis(client)
	if _, err := l.Acquire(ctx, "tick", time.Second); err != nil {
		t.Fatal(err)
	}

	srv.FastForward(2 * time.Second)

	if _, err := l.Acquire(ctx, "tick", time.Second); err != nil {
		t.Fatalf("expected expired lock to be free, got %v", err)
	}
}

func TestNewRedisClientRequiresURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), RedisConfig{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Day   int     `json:"day"`
	Value float64 `json:"value"`
}

func newTestCache(t *testing.T, opts ...MemoryOption) (*MemoryCache, *time.Time) {
	t.Helper()
	mc := NewMemoryCache(opts...)
	t.Cleanup(func() { _ = mc.Close() })
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	return mc, &now
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()

	if err := mc.Set(ctx, "a", []point{{1, 20.5}, {2, 21}}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got []point
	if err := mc.Get(ctx, "a", &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 || got[1].Value != 21 {
		t.Fatalf("unexpected value %+v", got)
	}

	var s string
	_ = mc.Set(ctx, "s", "plain", 0)
	if err := mc.Get(ctx, "s", &s); err != nil || s != "plain" {
		t.Fatalf("string round trip: %q %v", s, err)
	}

	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc, now := newTestCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "k", 1, time.Minute)
	*now = now.Add(2 * time.Minute)

	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key must miss, got %v", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Fatalf("expired key reported as existing")
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc, now := newTestCache(t, WithMemoryMaxSize(2))
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, 0)
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "b", 2, 0)
	*now = now.Add(time.Second)
	var v int
	_ = mc.Get(ctx, "a", &v)
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "c", 3, 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("a and c should remain")
	}
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc, _ := newTestCache(t)
	ctx := context.Background()

	_ = mc.Set(ctx, "forecast:m1:hanoi", 1, 0)
	_ = mc.Set(ctx, "forecast:m1:hue", 1, 0)
	_ = mc.Set(ctx, "forecast:m2:hue", 1, 0)

	if err := mc.DeleteByPattern(ctx, BuildPattern("forecast:m1:")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok, _ := mc.Exists(ctx, "forecast:m1:hanoi", "forecast:m1:hue"); ok {
		t.Fatalf("m1 keys should be gone")
	}
	if ok, _ := mc.Exists(ctx, "forecast:m2:hue"); !ok {
		t.Fatalf("m2 key should remain")
	}
}

func TestMemoryCacheLock(t *testing.T) {
	mc, now := newTestCache(t)
	ctx := context.Background()

	if ok, _ := mc.TryLock(ctx, "train", time.Minute); !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := mc.TryLock(ctx, "train", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	*now = now.Add(2 * time.Minute)
	if ok, _ := mc.TryLock(ctx, "train", time.Minute); !ok {
		t.Fatalf("lock should be free after ttl")
	}
	_ = mc.Unlock(ctx, "train")
	if ok, _ := mc.TryLock(ctx, "train", time.Minute); !ok {
		t.Fatalf("lock should be free after unlock")
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("forecast", "m", 5); got != "forecast:m:5" {
		t.Fatalf("unexpected key %q", got)
	}
}

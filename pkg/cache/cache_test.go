package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type payload struct {
	Title string `json:"title"`
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, ok, _ := c.Get(ctx, "k"); !ok || string(v) != "v" {
		t.Fatalf("expected hit, got %q %v", v, ok)
	}
	now = now.Add(time.Hour)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("expected miss at ttl boundary")
	}
}

func TestMemoryCacheZeroTTLDisables(t *testing.T) {
	c := NewMemoryCache(0)
	ctx := context.Background()
	_ = c.Set(ctx, "k", []byte("v"))
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatalf("zero ttl must not store")
	}
}

func TestMemoryCacheSweepsExpired(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	c.maxEntries = 2
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	_ = c.Set(ctx, "a", []byte("1"))
	_ = c.Set(ctx, "b", []byte("2"))
	now = now.Add(2 * time.Minute)
	_ = c.Set(ctx, "c", []byte("3"))
	if len(c.entries) != 1 {
		t.Fatalf("expected expired entries swept, have %d", len(c.entries))
	}
}

func TestRedisCacheJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	c := NewRedisCache(client, "test", time.Hour)
	ctx := context.Background()

	if _, ok, err := GetJSON[payload](ctx, c, "missing"); ok || err != nil {
		t.Fatalf("expected clean miss, ok=%v err=%v", ok, err)
	}
	if err := SetJSON(ctx, c, "book", payload{Title: "Grande Sertão"}); err != nil {
		t.Fatalf("set json: %v", err)
	}
	got, ok, err := GetJSON[payload](ctx, c, "book")
	if err != nil || !ok || got.Title != "Grande Sertão" {
		t.Fatalf("get json = %+v %v %v", got, ok, err)
	}
	if ttl := mr.TTL("test:book"); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	mr.FastForward(time.Hour)
	if _, ok, _ := c.Get(ctx, "book"); ok {
		t.Fatalf("expected expiry")
	}
}

func TestKey(t *testing.T) {
	if got := Key("catalog", " all ", "5", "dom casmurro"); got != "catalog:all:5:dom casmurro" {
		t.Fatalf("unexpected key %q", got)
	}
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryTokenRevokerExpires(t *testing.T) {
	r := NewMemoryTokenRevoker()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, _ := r.IsRevoked(ctx, "jti-1"); !ok {
		t.Fatalf("expected jti-1 revoked")
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti-1"); ok {
		t.Fatalf("expected revocation to lapse after ttl")
	}
	if err := r.Revoke(ctx, "jti-2", 0); err != nil {
		t.Fatalf("revoke zero ttl: %v", err)
	}
	if ok, _ := r.IsRevoked(ctx, "jti-2"); ok {
		t.Fatalf("zero ttl must not revoke")
	}
}

func TestRedisTokenRevoker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	r := NewRedisTokenRevoker(client)
	ctx := context.Background()

	if err := r.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ok, err := r.IsRevoked(ctx, "jti-1"); err != nil || !ok {
		t.Fatalf("expected revoked, ok=%v err=%v", ok, err)
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := r.IsRevoked(ctx, "jti-1"); ok {
		t.Fatalf("expected key to expire")
	}
}

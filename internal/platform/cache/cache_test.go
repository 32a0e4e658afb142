package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	if got := Key("north", "review-counts", "abc"); got != "signpost:north:review-counts:abc" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestNopStore(t *testing.T) {
	var s Store = NopStore{}
	ctx := context.Background()

	if err := s.SetJSON(ctx, "k", map[string]int{"a": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var dst map[string]int
	found, err := s.GetJSON(ctx, "k", &dst)
	if err != nil || found {
		t.Errorf("expected miss, got found=%v err=%v", found, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if n, err := s.DeleteMatch(ctx, Key("*", "review-counts", "*")); n != 0 || err != nil {
		t.Errorf("expected nothing removed, got %d, %v", n, err)
	}
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	if _, err := NewRedisStore(context.Background(), "not a url", time.Minute); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestRedisStore_UnreachableServerReportsError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRedisStoreWithClient(client, time.Minute)
	defer s.Close()

	var dst struct{}
	if _, err := s.GetJSON(context.Background(), "k", &dst); err == nil {
		t.Error("expected error from unreachable redis")
	}
	if err := s.Delete(context.Background()); err != nil {
		t.Errorf("empty delete should be a no-op, got %v", err)
	}
	if _, err := s.DeleteMatch(context.Background(), Key("*", "review-counts", "*")); err == nil {
		t.Error("expected scan error from unreachable redis")
	}
}

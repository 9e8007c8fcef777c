package cache

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"newslens/internal/config"
)

func TestFeedKey(t *testing.T) {
	a1 := FeedKey("https://www.clarin.com/rss/lo-ultimo/")
	a2 := FeedKey("https://www.clarin.com/rss/lo-ultimo/")
	b := FeedKey("https://www.perfil.com/feed")

	if a1 != a2 {
		t.Errorf("expected same key for same URL, got %s != %s", a1, a2)
	}
	if a1 == b {
		t.Errorf("expected different keys for different URLs, got %s", a1)
	}
	if !strings.HasPrefix(a1, "feed:") || len(a1) != len("feed:")+16 {
		t.Errorf("unexpected key format %s", a1)
	}
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, config.Redis{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, ok := c.(Noop); !ok {
		t.Fatalf("expected Noop cache without an address, got %T", c)
	}

	if err := c.Set(ctx, StatsKey("category"), map[string]int{"Health": 2}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var out map[string]int
	hit, err := GetJSON(ctx, c, StatsKey("category"), &out)
	if err != nil || hit {
		t.Errorf("expected a miss, got hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, "k", func() {}, time.Minute); err == nil {
		t.Error("expected an error for an unencodable value")
	}
	if c.Health(ctx)["status"] != "disabled" {
		t.Error("expected disabled status")
	}
}

// Requires a Redis server at REDIS_ADDR.
func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	c, err := NewRedis(ctx, config.Redis{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	defer c.Close()

	key := StatsKey("test-roundtrip")
	defer c.Delete(ctx, key)

	if err := c.Set(ctx, key, []string{"a", "b"}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	var got []string
	hit, err := GetJSON(ctx, c, key, &got)
	if err != nil || !hit || len(got) != 2 {
		t.Fatalf("expected hit with 2 items, got hit=%v err=%v %v", hit, err, got)
	}

	if err := c.Set(ctx, key, "not json", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if hit, _ := GetJSON(ctx, c, key, &got); hit {
		t.Error("undecodable value should be a miss")
	}
	if v, _ := c.Get(ctx, key); v != "" {
		t.Errorf("undecodable value should be deleted, got %q", v)
	}
	if c.Health(ctx)["status"] != "healthy" {
		t.Error("expected healthy status")
	}
}

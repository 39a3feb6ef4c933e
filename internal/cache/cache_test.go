package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*Cache{"nil": nil, "no addr": Open("", "", 0, nil)} {
		t.Run(name, func(t *testing.T) {
			if c.Enabled() {
				t.Fatal("expected disabled cache")
			}
			c.SetJSON(ctx, Key("stats", "x"), map[string]int{"a": 1}, time.Minute)
			var out map[string]int
			if c.GetJSON(ctx, "stats", Key("stats", "x"), &out) {
				t.Error("disabled cache must always miss")
			}
			if err := c.Ping(ctx); err != nil {
				t.Errorf("ping: %v", err)
			}
			if err := c.Invalidate(ctx, "stats"); err != nil {
				t.Errorf("invalidate: %v", err)
			}
			if err := c.Close(); err != nil {
				t.Errorf("close: %v", err)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if got := Key("heatmap", "a", "b"); got != "alerthub:heatmap:a:b" {
		t.Errorf("unexpected key %q", got)
	}
}

func TestRoundTripAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping integration test")
	}
	ctx := context.Background()
	c := Open(addr, os.Getenv("REDIS_PASSWORD"), 0, nil)
	defer c.Close()
	if err := c.Ping(ctx); err != nil {
		t.Skipf("redis unreachable: %v", err)
	}

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	key := Key("test", time.Now().Format(time.RFC3339Nano))
	c.SetJSON(ctx, key, payload{"Downtown", 3}, time.Minute)

	var got payload
	if !c.GetJSON(ctx, "test", key, &got) || got.Name != "Downtown" || got.Count != 3 {
		t.Fatalf("expected hit with stored payload, got %+v", got)
	}
	if err := c.Invalidate(ctx, "test"); err != nil {
		t.Fatal(err)
	}
	if c.GetJSON(ctx, "test", key, &got) {
		t.Error("expected miss after invalidate")
	}
}

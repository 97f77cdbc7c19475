package cache

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"
)

type payload struct {
	Score int       `json:"score"`
	Probs []float64 `json:"probs"`
}

func TestCacheMemoryOnly(t *testing.T) {
	ctx := context.Background()
	// nil redis 客户端
	c := New(nil, time.Minute, nil)

	var out payload
	if c.Get(ctx, "missing", &out) {
		t.Fatal("Get() hit on empty cache")
	}

	c.Set(ctx, "k", payload{Score: 2, Probs: []float64{0.1, 0.2, 0.6, 0.1}})
	if !c.Get(ctx, "k", &out) {
		t.Fatal("Get() missed after Set()")
	}
	if out.Score != 2 || len(out.Probs) != 4 {
		t.Errorf("Get() = %+v", out)
	}

	c.Delete(ctx, "k")
	if c.Get(ctx, "k", &out) {
		t.Error("Get() hit after Delete()")
	}
}

func TestCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c := New(nil, time.Minute, nil)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "k", payload{Score: 1})
	now = now.Add(59 * time.Second)
	var out payload
	if !c.Get(ctx, "k", &out) {
		t.Fatal("entry expired too early")
	}

	now = now.Add(2 * time.Second)
	if c.Get(ctx, "k", &out) {
		t.Error("entry should have expired")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after expiry", c.Len())
	}
}

func TestCacheSweepsExpiredEntries(t *testing.T) {
	ctx := context.Background()
	c := New(nil, time.Minute, nil)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		c.Set(ctx, Key("grader", strconv.Itoa(i)), payload{Score: i % 4})
	}
	if c.Len() != 1000 {
		t.Fatalf("Len() = %d, want 1000", c.Len())
	}

	// 30 秒后尚未过期，清理不应删除任何项
	now = now.Add(30 * time.Second)
	c.Set(ctx, "fresh", payload{})
	if c.Len() != 1001 {
		t.Fatalf("Len() = %d, want 1001", c.Len())
	}

	now = now.Add(time.Hour)
	c.Set(ctx, "latest", payload{Score: 3})
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after the rest expired", c.Len())
	}

	var out payload
	if !c.Get(ctx, "latest", &out) || out.Score != 3 {
		t.Errorf("Get(latest) = %+v", out)
	}
}

func TestKey(t *testing.T) {
	a := Key("classify", "q", "s", "/m.ckpt")
	b := Key("classify", "q", "s", "/m.ckpt")
	c := Key("classify", "qs", "", "/m.ckpt")
	if a != b {
		t.Error("Key() is not stable")
	}
	if a == c {
		t.Error("Key() collides on re-split input")
	}
	if a[:9] != "classify:" {
		t.Errorf("Key() = %q, want namespace prefix", a)
	}
}

func TestCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	c := New(nil, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Set(ctx, Key("n", string(rune('a'+i%5))), payload{Score: i % 4})
			var out payload
			c.Get(ctx, Key("n", "a"), &out)
		}(i)
	}
	wg.Wait()

	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(size int, clock *fakeClock, opts ...Option[string]) *LRUCache[string] {
	return NewLRUCache[string](size, time.Minute, append(opts, withClock[string](clock.now))...)
}

func TestLRUCache_GetSet(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCache(2, clock)

	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	c.Set("a", "2")
	if v, _ := c.Get("a"); v != "2" {
		t.Errorf("overwrite: got %q", v)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d", c.Size())
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("deleted key still present")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var evicted []string
	c := newTestCache(2, clock, WithEvictionCallback(func(k, _ string) { evicted = append(evicted, k) }))

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if diff := cmp.Diff([]string{"b"}, evicted); diff != "" {
		t.Errorf("evicted (-want +got):\n%s", diff)
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCache(10, clock)

	c.Set("a", "1")
	clock.advance(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
}

func TestLRUCache_SlidingExpiration(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCache(10, clock, WithSlidingExpiration[string]())

	c.Set("a", "1")
	for i := 0; i < 3; i++ {
		clock.advance(40 * time.Second)
		if _, ok := c.Get("a"); !ok {
			t.Fatalf("read %d: entry expired despite access", i)
		}
	}
}

func TestManager_CleanAll(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := newTestCache(10, clock)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.advance(30 * time.Second)
	c.Set("c", "3")
	clock.advance(45 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanAll(); n != 2 {
		t.Errorf("CleanAll = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Errorf("Size = %d, want 1", c.Size())
	}
}

func TestManager_RunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewManager(nil).Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

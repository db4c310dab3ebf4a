package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(maxSize int, ttl time.Duration) (*LRUCache[string], *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](maxSize, ttl)
	c.now = clock.now
	return c, clock
}

func TestLRUCache_SetGetDelete(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to be deleted")
	}
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	var evicted []string
	c.OnEvict(func(key string, _ string) { evicted = append(evicted, key) })

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v, want [b]", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", c.Size())
	}
}

func TestLRUCache_TTLSlidesOnAccess(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")

	clock.advance(50 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be alive")
	}
	clock.advance(50 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected access to extend lifetime")
	}
	clock.advance(61 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a to expire")
	}
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	calls := 0
	create := func() string { calls++; return "new" }

	v, found := c.GetOrCreate("s", create)
	if found || v != "new" || calls != 1 {
		t.Fatalf("first GetOrCreate = %q %v calls=%d", v, found, calls)
	}
	v, found = c.GetOrCreate("s", create)
	if !found || v != "new" || calls != 1 {
		t.Fatalf("second GetOrCreate = %q %v calls=%d", v, found, calls)
	}
	clock.advance(2 * time.Minute)
	if _, found = c.GetOrCreate("s", create); found || calls != 2 {
		t.Fatalf("expected expired entry to be recreated, calls=%d", calls)
	}
}

func TestManager_CleanNow(t *testing.T) {
	c, clock := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	clock.advance(2 * time.Minute)
	c.Set("c", "3")

	m := NewManager(nil)
	m.Register(c)
	if n := m.CleanNow(); n != 2 {
		t.Fatalf("CleanNow() = %d, want 2", n)
	}
	if c.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", c.Size())
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := NewManager(nil)
	m.Stop()
}
